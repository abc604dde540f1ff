// Package docs registers the OpenAPI description of the support API with
// swag so gin-swagger can serve it under /swagger/*any.
//
// Regenerate with:
//
//	swag init -g cmd/supportd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/customer/me": {
            "get": {
                "description": "Reports whether the request carries a valid storefront token and, if so, the customer's display name and e-mail. Operator tokens are flagged.",
                "produces": ["application/json"],
                "tags": ["Widget"],
                "summary": "Resolve the current customer",
                "operationId": "getCustomer",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.CustomerLookup"}}
                }
            }
        },
        "/channel/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Widget"],
                "summary": "Support channel availability",
                "operationId": "getChannelStatus",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChannelStatusResponse"}}
                }
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "description": "Returns the messages created strictly after ` + "`after`" + ` (all when omitted), oldest first.",
                "produces": ["application/json"],
                "tags": ["Widget"],
                "summary": "Poll a conversation",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "RFC 3339 timestamp or unix milliseconds", "name": "after", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessagesResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Stores a customer message. Supports idempotent retries via the Idempotency-Key header (same key in the same conversation returns the same message).",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Widget"],
                "summary": "Send a customer message",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "description": "Temporary message id", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Message payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "201": {"description": "Stored", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Restricted", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conversation closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/conversations/{id}/restriction": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Widget"],
                "summary": "Check whether a conversation may send",
                "operationId": "getRestriction",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.RestrictionStatus"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/operator/conversations/{id}/replies": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "Reply to a conversation as an operator",
                "operationId": "postReply",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Reply payload", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReplyRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Conversation closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/operator/conversations/{id}/close": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Appends a system message; the widget starts its cooldown when it sees it.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "Close a conversation",
                "operationId": "closeConversation",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Optional closing note", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.CloseRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Already closed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/operator/conversations/{id}/restriction": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "description": "Blocks customer sends until ` + "`until`" + ` (or for ` + "`duration_seconds`" + `). Without either the restriction lasts until lifted.",
                "summary": "Restrict a conversation",
                "operationId": "restrictConversation",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"description": "Restriction", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RestrictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.RestrictionStatus"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Operator"],
                "summary": "Lift a restriction",
                "operationId": "liftRestriction",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "Lifted"},
                    "404": {"description": "Not restricted", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/operator/conversations/{id}/transcript": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "Page through a conversation transcript",
                "operationId": "getTranscript",
                "parameters": [
                    {"type": "string", "description": "Conversation ID", "name": "id", "in": "path", "required": true},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"},
                    {"type": "string", "description": "ETag of a previous answer", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TranscriptResponse"}},
                    "304": {"description": "Not modified"},
                    "404": {"description": "Conversation not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/operator/channel/status": {
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Operator"],
                "summary": "Change the support channel availability",
                "operationId": "setChannelStatus",
                "parameters": [
                    {"description": "New status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SetChannelStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChannelStatusResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.CustomerLookup": {
            "type": "object",
            "properties": {
                "authenticated": {"type": "boolean"},
                "name": {"type": "string"},
                "email": {"type": "string"},
                "operator": {"type": "boolean"}
            }
        },
        "domain.Message": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "conversation_id": {"type": "string"},
                "body": {"type": "string"},
                "sender_type": {"type": "string", "enum": ["customer", "admin", "support", "system"]},
                "sender_name": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
            }
        },
        "domain.RestrictionStatus": {
            "type": "object",
            "properties": {
                "restricted": {"type": "boolean"},
                "until": {"type": "string", "format": "date-time"},
                "reason": {"type": "string"}
            }
        },
        "handlers.ChannelStatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["online", "away", "offline"]}
            }
        },
        "handlers.CloseRequest": {
            "type": "object",
            "properties": {
                "note": {"type": "string", "example": "Thanks for chatting with us!"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "not_found"},
                "message": {"type": "string"}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"$ref": "#/definitions/domain.Message"}
            }
        },
        "handlers.MessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"},
                "has_next": {"type": "boolean"}
            }
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "required": ["body"],
            "properties": {
                "body": {"type": "string", "example": "Hi, where is my order?"},
                "sender_name": {"type": "string", "example": "Ada Lovelace"},
                "customer_email": {"type": "string", "example": "ada@example.com"}
            }
        },
        "handlers.ReplyRequest": {
            "type": "object",
            "required": ["body"],
            "properties": {
                "body": {"type": "string", "example": "Your parcel ships tomorrow."},
                "sender_name": {"type": "string", "example": "Grace"}
            }
        },
        "handlers.RestrictRequest": {
            "type": "object",
            "properties": {
                "until": {"type": "string", "format": "date-time"},
                "duration_seconds": {"type": "integer", "example": 900},
                "reason": {"type": "string", "example": "abusive language"}
            }
        },
        "handlers.SetChannelStatusRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["online", "away", "offline"]}
            }
        },
        "handlers.TranscriptResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Storefront or operator JWT: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "go-livechat support API",
	Description:      "Reference support backend for the storefront live-chat widget.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
