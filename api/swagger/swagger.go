package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TOR Accreditation API",
        "description": "Workflow engine for transcript-of-records accreditation",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh, session management"},
        {"name": "Workflow", "description": "Accreditation request lifecycle"},
        {"name": "Entries", "description": "Per-subject credit evaluation"},
        {"name": "Tracking", "description": "Progress tracker, dashboards, finalized reports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Open an accreditation request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Active request exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Tracking"],
                "summary": "List requests by stage",
                "parameters": [
                    {"name": "stage", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/accept": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Accept a request for evaluation",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/deny": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Deny a request and remove its copied rows",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/cancel": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Cancel the caller's own request",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/finalize": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Freeze the evaluation and close the request",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Unreviewed entries remain", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/sync": {
            "post": {
                "tags": ["Workflow"],
                "summary": "Re-copy extracted transcript rows",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Extractor unreachable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/requests/{applicantId}/entries": {
            "get": {
                "tags": ["Entries"],
                "summary": "List evaluation entries",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/entries/{id}/evaluation": {
            "patch": {
                "tags": ["Entries"],
                "summary": "Set the credit evaluation on one entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Submission finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/entries/{id}/note": {
            "patch": {
                "tags": ["Entries"],
                "summary": "Set the reviewer note on one entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Submission finalized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/tracking/{applicantId}/progress": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Applicant progress step",
                "parameters": [
                    {"name": "applicantId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/finalized": {
            "get": {
                "tags": ["Tracking"],
                "summary": "List finalized summaries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/finalized/{submissionId}/export": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Download a finalized summary as CSV or PDF",
                "parameters": [
                    {"name": "submissionId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/curriculum": {
            "get": {
                "tags": ["Tracking"],
                "summary": "Institutional subject catalog",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SubmitRequest": {
            "type": "object",
            "required": ["account_id"],
            "properties": {
                "account_id": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
