// Package docs holds the OpenAPI description served under /swagger/.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/api/records/v1/access/authorize": {
            "post": {
                "summary": "Grant another participant access to the caller's record",
                "parameters": [
                    {"name": "X-Request-Id", "in": "header", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AccessChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessChangeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/records/v1/access/revoke": {
            "post": {
                "summary": "Revoke a participant's access to the caller's record",
                "parameters": [
                    {"name": "X-Request-Id", "in": "header", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AccessChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessChangeResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/records/v1/access": {
            "get": {
                "summary": "List participants the caller has authorized",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/AuthorizedListResponse"}}}
            }
        },
        "/api/records/v1/audit": {
            "get": {
                "summary": "List audit entries for the caller's record",
                "parameters": [{"name": "limit", "in": "query", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/AuditTrailResponse"}}}
            }
        },
        "/api/records/v1/patients/{user_id}": {
            "get": {
                "summary": "Read a patient record",
                "parameters": [{"name": "user_id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PatientRecordResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/records/v1/patients/{user_id}/access": {
            "get": {
                "summary": "Evaluate the access gate for the caller against a patient",
                "parameters": [{"name": "user_id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/AccessDecisionResponse"}}}
            }
        },
        "/api/records/v1/patients/{user_id}/reports": {
            "post": {
                "summary": "Append a report to a patient record",
                "parameters": [
                    {"name": "user_id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Request-Id", "in": "header", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddReportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/AddReportResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/records/v1/patients/{user_id}/health-data": {
            "patch": {
                "summary": "Merge health-data fields into a patient record",
                "parameters": [
                    {"name": "user_id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Request-Id", "in": "header", "required": true, "type": "string"},
                    {"name": "Idempotency-Key", "in": "header", "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateHealthDataRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UpdateHealthDataResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "AccessChangeRequest": {"type": "object", "properties": {"user_id": {"type": "string"}}},
        "AccessChangeResponse": {"type": "object", "properties": {
            "participant_id": {"type": "string"},
            "user_id": {"type": "string"},
            "authorized": {"type": "array", "items": {"type": "string"}},
            "changed": {"type": "boolean"},
            "event_id": {"type": "string"}
        }},
        "AuthorizedListResponse": {"type": "object", "properties": {"authorized": {"type": "array", "items": {"type": "string"}}}},
        "ReportDTO": {"type": "object", "properties": {
            "report_id": {"type": "string"},
            "title": {"type": "string"},
            "text": {"type": "string"},
            "author_id": {"type": "string"},
            "timestamp": {"type": "string", "format": "date-time"}
        }},
        "AddReportRequest": {"type": "object", "properties": {"title": {"type": "string"}, "text": {"type": "string"}}},
        "AddReportResponse": {"type": "object", "properties": {
            "patient_id": {"type": "string"},
            "report": {"$ref": "#/definitions/ReportDTO"},
            "event_id": {"type": "string"},
            "replayed": {"type": "boolean"}
        }},
        "UpdateHealthDataRequest": {"type": "object", "properties": {"health_data": {"type": "object"}}},
        "UpdateHealthDataResponse": {"type": "object", "properties": {
            "patient_id": {"type": "string"},
            "applied": {"type": "object"},
            "skipped": {"type": "array", "items": {"type": "string"}},
            "health_data": {"type": "object"},
            "event_id": {"type": "string"},
            "replayed": {"type": "boolean"}
        }},
        "PatientRecordResponse": {"type": "object", "properties": {
            "patient_id": {"type": "string"},
            "reports": {"type": "array", "items": {"$ref": "#/definitions/ReportDTO"}},
            "health_data": {"type": "object"},
            "authorized": {"type": "array", "items": {"type": "string"}},
            "version": {"type": "integer"}
        }},
        "AccessDecisionResponse": {"type": "object", "properties": {
            "actor_id": {"type": "string"},
            "user_id": {"type": "string"},
            "allowed": {"type": "boolean"},
            "reason": {"type": "string"},
            "checked_at": {"type": "string", "format": "date-time"}
        }},
        "AuditTrailResponse": {"type": "object", "properties": {"entries": {"type": "array", "items": {"type": "object"}}}},
        "ErrorResponse": {"type": "object", "properties": {"code": {"type": "string"}, "message": {"type": "string"}}}
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Medical Records API",
	Description:      "Access-controlled patient records with an audit trail.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
