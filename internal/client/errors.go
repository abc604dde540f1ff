package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error codes the support API answers with that callers branch on.
const (
	CodeRestricted         = "restricted"
	CodeConversationClosed = "conversation_closed"
	CodeNotFound           = "not_found"
	CodeUnauthorized       = "unauthorized"
)

// APIError is a non-2xx answer of the support API.
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("support api: %d %s", e.Status, msg)
	}
	return fmt.Sprintf("support api: %d %s: %s", e.Status, e.Code, msg)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsCode reports whether err is an *APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsRestricted reports whether the server refused a send because an operator
// restricted the conversation.
func IsRestricted(err error) bool { return IsCode(err, CodeRestricted) }

// IsClosed reports whether the server refused a send on a closed
// conversation.
func IsClosed(err error) bool { return IsCode(err, CodeConversationClosed) }

// decodeAPIError reads the error envelope. Bodies that are not JSON (proxies,
// load balancers) keep their first line as the message.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(raw, apiErr); err != nil {
		*apiErr = APIError{Status: resp.StatusCode}
		apiErr.Message, _, _ = strings.Cut(strings.TrimSpace(string(raw)), "\n")
	}
	if apiErr.RequestID == "" {
		apiErr.RequestID = resp.Header.Get(headerRequestID)
	}
	return apiErr
}
