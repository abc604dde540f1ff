// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file wires bearer tokens into the request context. Authenticate is
// optional authentication: the widget calls customer routes anonymously as
// well as with a storefront token, so a missing or bad token only means "no
// claims". RequireOperator guards the back-office routes.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-livechat/internal/auth"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyClaims = "auth.claims"
)

// TokenVerifier verifies a bearer token. *auth.JWTService implements it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Authenticate stores verified claims (and the subject under "userID") when
// the request carries a valid bearer token. Invalid tokens are logged and
// otherwise ignored.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v == nil {
			c.Next()
			return
		}
		claims, err := v.Verify(token)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("ignoring invalid bearer token")
			c.Next()
			return
		}
		c.Set(ctxKeyClaims, claims)
		if claims.Subject != "" {
			c.Set(ctxKeyUserID, claims.Subject)
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// RequireOperator rejects requests without claims (401) or with non-operator
// claims (403). Install it after Authenticate.
func RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="operator"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "operator token required")
			return
		}
		if !claims.IsOperator() {
			abortJSON(c, http.StatusForbidden, "forbidden", "operator role required")
			return
		}
		c.Next()
	}
}

func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
