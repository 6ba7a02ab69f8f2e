package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable Engine API",
        "description": "Generates ranked, conflict-free academic timetables and validates interactive edits.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Generation, alternatives and stored timetables"},
        {"name": "Schedules", "description": "Editable schedules and single-session moves"},
        {"name": "Jobs", "description": "Background generation with progress streaming"},
        {"name": "Ops", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Liveness and in-process counters",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness of database and cache",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Exposition text"}}
            }
        },
        "/api/v1/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate ranked alternatives",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Ranked alternatives", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid input or validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Infeasible input with diagnostic causes", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "499": {"description": "Request cancelled"},
                    "503": {"description": "Search budget exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/alternatives/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a generated alternative",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Alternative", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired alternative"}
                }
            }
        },
        "/api/v1/timetables/alternatives/{id}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Export an alternative as a batch by day by period grid",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"},
                    "400": {"description": "Unsupported format"},
                    "404": {"description": "Unknown or expired alternative"}
                }
            }
        },
        "/api/v1/timetables/alternatives/{id}/save": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Persist an alternative and its placements",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SaveAlternativeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired alternative"}
                }
            }
        },
        "/api/v1/timetables/saved": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List stored timetables",
                "parameters": [
                    {"name": "fingerprint", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["DRAFT", "PUBLISHED", "ARCHIVED"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "Stored timetables", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/timetables/saved/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get a stored timetable with placements",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Stored timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Timetables"],
                "summary": "Delete a draft timetable",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Only drafts can be deleted"}
                }
            }
        },
        "/api/v1/timetables/saved/{id}/publish": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Publish a stored timetable and archive the previous one",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Published timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"},
                    "409": {"description": "Archived timetables cannot be published"}
                }
            }
        },
        "/api/v1/timetables/jobs": {
            "post": {
                "tags": ["Jobs"],
                "summary": "Start a background generation",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job accepted", "headers": {"Location": {"type": "string"}}, "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error"}
                }
            }
        },
        "/api/v1/timetables/jobs/{id}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Get job status and result",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Jobs"],
                "summary": "Cancel a job",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Cancellation requested"},
                    "404": {"description": "Not found"},
                    "409": {"description": "Job already finished"}
                }
            }
        },
        "/api/v1/timetables/jobs/{id}/events": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Stream job progress as server-sent events",
                "produces": ["text/event-stream"],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "progress events followed by one succeeded, failed or cancelled event"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/timetables/schedules": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Adopt an alternative as an editable schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown or expired alternative"}
                }
            }
        },
        "/api/v1/timetables/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get the current head and history of a schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/timetables/schedules/{id}/moves": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Move one session to a new slot and room",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "Move accepted with soft warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid move"},
                    "404": {"description": "Unknown schedule or session"},
                    "409": {"description": "Hard conflicts with the colliding sessions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["grid", "faculty", "rooms", "subjects", "batches"],
            "properties": {
                "grid": {"type": "object"},
                "faculty": {"type": "array", "items": {"type": "object"}},
                "rooms": {"type": "array", "items": {"type": "object"}},
                "subjects": {"type": "array", "items": {"type": "object"}},
                "batches": {"type": "array", "items": {"type": "object"}},
                "constraints": {"type": "array", "items": {"type": "object"}},
                "alternatives": {"type": "integer"},
                "seed": {"type": "integer"},
                "timeoutMs": {"type": "integer"},
                "noCache": {"type": "boolean"}
            }
        },
        "SaveAlternativeRequest": {
            "type": "object",
            "properties": {
                "scheduleId": {"type": "string"},
                "publish": {"type": "boolean"}
            }
        },
        "CreateScheduleRequest": {
            "type": "object",
            "required": ["alternativeId"],
            "properties": {
                "alternativeId": {"type": "string"}
            }
        },
        "MoveRequest": {
            "type": "object",
            "required": ["sessionId", "day", "period", "roomId"],
            "properties": {
                "sessionId": {"type": "string"},
                "day": {"type": "integer"},
                "period": {"type": "integer"},
                "roomId": {"type": "string"},
                "dryRun": {"type": "boolean"}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
