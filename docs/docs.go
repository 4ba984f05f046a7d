// Package docs holds the OpenAPI description served by the swagger UI.
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
        "/api/courses": {
            "get": {
                "description": "Walks the source tree, regenerates HTML and PDF artifacts and reconciles the catalog.",
                "produces": ["application/json"],
                "tags": ["refresh"],
                "summary": "Refresh the course catalog",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Refresh key (or X-Refresh-Key header)",
                        "name": "key",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.refreshResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/courses": {
            "get": {
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "List courses",
                "parameters": [
                    {"type": "integer", "default": 10, "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.CourseListResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["courses"],
                "summary": "Get a course",
                "parameters": [
                    {"type": "integer", "description": "Course ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Course"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorPayload"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/courses/{id}/html": {
            "get": {
                "produces": ["text/html"],
                "tags": ["courses"],
                "summary": "Download a course artifact",
                "parameters": [
                    {"type": "integer", "description": "Course ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/courses/{id}/pdf": {
            "get": {
                "produces": ["application/pdf"],
                "tags": ["courses"],
                "summary": "Download a course artifact",
                "parameters": [
                    {"type": "integer", "description": "Course ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "302": {"description": "Found"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorPayload"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handler.errorEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "handler.errorPayload": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handler.errorEnvelope"},
                "request_id": {"type": "string"}
            }
        },
        "handler.failureView": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "kind": {"type": "string"},
                "message": {"type": "string"},
                "path": {"type": "string"},
                "title": {"type": "string"}
            }
        },
        "handler.refreshResponse": {
            "type": "object",
            "properties": {
                "courses": {"type": "array", "items": {"$ref": "#/definitions/model.DocumentRecord"}},
                "failures": {"type": "array", "items": {"$ref": "#/definitions/handler.failureView"}},
                "inserted": {"type": "integer"},
                "pruned": {"type": "array", "items": {"type": "string"}},
                "run_id": {"type": "string"},
                "status": {"type": "string"},
                "unchanged": {"type": "integer"},
                "updated": {"type": "integer"}
            }
        },
        "model.Course": {
            "type": "object",
            "properties": {
                "author": {"type": "string"},
                "date": {"type": "string"},
                "html_path": {"type": "string"},
                "id": {"type": "integer"},
                "last_update": {"type": "string"},
                "path": {"type": "string"},
                "pdf_path": {"type": "string"},
                "semester": {"type": "string"},
                "size": {"type": "integer"},
                "title": {"type": "string"}
            }
        },
        "model.DocumentRecord": {
            "type": "object",
            "properties": {
                "author": {"type": "string"},
                "date": {"type": "string"},
                "html_path": {"type": "string"},
                "path": {"type": "string"},
                "pdf_path": {"type": "string"},
                "semester": {"type": "string"},
                "size": {"type": "integer"},
                "title": {"type": "string"}
            }
        },
        "service.CourseListResult": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/model.Course"}},
                "total": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Course Sync API",
	Description:      "Synchronizes a tree of Markdown courses into HTML and PDF artifacts and a browsable catalog.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
