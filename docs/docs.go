// Package docs holds the swagger specification registered with swag.
// Regenerate with: swag init --parseDependency --parseInternal
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/share/{token}/access": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Access"],
                "summary": "Access a shared document",
                "description": "Validate the link policy, open a view session and return a signed document handle",
                "parameters": [
                    {"type": "string", "name": "token", "in": "path", "required": true, "description": "Share link token"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/dto.AccessRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session opened", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Incorrect password or missing email", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "403": {"description": "Link disabled, expired or view limit reached", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Link not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/documents/{uuid}/manifest": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Access"],
                "summary": "Document manifest",
                "parameters": [
                    {"type": "string", "name": "uuid", "in": "path", "required": true, "description": "Document UUID"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Missing or invalid document handle", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Document not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/page-view": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Telemetry"],
                "summary": "Record a page view",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Unknown session", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/session-end": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Telemetry"],
                "summary": "Close a view session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Unknown session", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/session-activity": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Telemetry"],
                "summary": "Session heartbeat",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Unknown session", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/global": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Platform-wide counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/summaries/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Recompute daily summaries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Document not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/document/{token}/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Per-document stats",
                "parameters": [
                    {"type": "string", "name": "token", "in": "path", "required": true, "description": "Share link token"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Link not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/document/{token}/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Paginated session list",
                "parameters": [
                    {"type": "string", "name": "token", "in": "path", "required": true, "description": "Share link token"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Invalid paging or filters", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        },
        "/analytics/document/{token}/sessions/export": {
            "get": {
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["Analytics"],
                "summary": "Excel session export",
                "parameters": [
                    {"type": "string", "name": "token", "in": "path", "required": true, "description": "Share link token"}
                ],
                "responses": {
                    "200": {"description": "Workbook stream"}
                }
            }
        },
        "/analytics/document/{token}/sessions/{session_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Analytics"],
                "summary": "Single session detail",
                "parameters": [
                    {"type": "string", "name": "token", "in": "path", "required": true, "description": "Share link token"},
                    {"type": "string", "name": "session_id", "in": "path", "required": true, "description": "Session UUID"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/dto.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"}
            }
        },
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "details": {}
            }
        },
        "dto.AccessRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "DocPulse Analytics API",
	Description:      "View-session telemetry and aggregation pipeline for shared documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
