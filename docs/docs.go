// Package docs holds the OpenAPI description of the triage API served at
// /swagger when SWAGGER_ENABLED is set. Keep it in step with the godoc
// annotations on the handlers.
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
        "/ai/describe-skin-image": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Produces an objective description of the photo and stores it in a single-use analysis session valid for 15 minutes.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Describe a skin photo (phase 1)",
                "operationId": "describeSkinImage",
                "parameters": [
                    {"description": "Photo", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.DescribeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DescribeResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Empty model response", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Model provider unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ai/get-skin-conclusion": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Consumes the analysis session and returns the triage verdict. The session is gone afterwards, even when the model call fails.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Conclude a skin analysis (phase 2)",
                "operationId": "getSkinConclusion",
                "parameters": [
                    {"description": "Analysis id and answers", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ConclusionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.TriageResult"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Session expired, unknown, or used", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Unparsable or empty model response", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Model provider unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ai/analyze-skin": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Runs describe and conclude back to back. With an Idempotency-Key, a repeated request returns the stored verdict and sets Idempotency-Replayed: true.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Analyze a skin photo in one call",
                "operationId": "analyzeSkin",
                "parameters": [
                    {"type": "string", "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab", "description": "Key for safe retries (the offline queue entry id)", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Photo, answers, language", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.AnalysisPayload"}}
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/domain.TriageResult"},
                        "headers": {"Idempotency-Replayed": {"type": "string", "description": "true when served from a stored result"}}
                    },
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Body too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Unparsable or empty model response", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Model provider unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/ai/chat": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Appends the message to the caller's conversation and returns either a follow-up question with suggested answers or a final triage result. A conversation that already ended, or whose language changes, starts over.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Chat"],
                "summary": "Send a triage chat message",
                "operationId": "chat",
                "parameters": [
                    {"description": "Chat message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ChatReply"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Unparsable or empty model response", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Model provider unavailable", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Deletes the caller's stored conversation. Succeeds when there is none.",
                "tags": ["Chat"],
                "summary": "Discard the triage conversation",
                "operationId": "resetChat",
                "responses": {
                    "204": {"description": "No Content", "schema": {"type": "string"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.AnalysisPayload": {
            "type": "object",
            "properties": {
                "imageData": {"type": "string"},
                "mimeType": {"type": "string", "example": "image/jpeg"},
                "language": {"type": "string", "example": "en"},
                "mcqAnswers": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "domain.ChatReply": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "suggestions": {"type": "array", "items": {"type": "string"}},
                "triageResult": {"$ref": "#/definitions/domain.TriageResult"}
            }
        },
        "domain.TriageResult": {
            "type": "object",
            "properties": {
                "conclusion": {"type": "string", "enum": ["MILD", "SERIOUS"]},
                "explanation": {"type": "string"},
                "selfCareTips": {"type": "array", "items": {"type": "string"}},
                "doctorSuggestion": {"type": "string"}
            }
        },
        "handlers.ChatRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "I have had a red itchy patch on my arm for three days"},
                "language": {"type": "string", "example": "en"}
            }
        },
        "handlers.ConclusionRequest": {
            "type": "object",
            "properties": {
                "analysisId": {"type": "string", "example": "6f1c2a9e-4b7d-4a51-9d38-2f0e8c1b7a44"},
                "mcqAnswers": {"type": "object", "additionalProperties": {"type": "string"}},
                "language": {"type": "string", "example": "en"}
            }
        },
        "handlers.DescribeRequest": {
            "type": "object",
            "properties": {
                "imageData": {"type": "string", "example": "iVBORw0KGgoAAAANSUhEUgAA..."},
                "mimeType": {"type": "string", "example": "image/jpeg"}
            }
        },
        "handlers.DescribeResponse": {
            "type": "object",
            "properties": {
                "analysisId": {"type": "string", "example": "6f1c2a9e-4b7d-4a51-9d38-2f0e8c1b7a44"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "code": {"type": "string", "example": "session_not_found"},
                "message": {"type": "string", "example": "analysis session expired or already used"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Triage API",
	Description:      "Two-phase skin photo analysis and conversational symptom triage.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
