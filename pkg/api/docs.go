package api

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
        "/health": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ticks": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ticks"],
                "summary": "Ingest a batch of ticks",
                "parameters": [
                    {"name": "ticks", "in": "body", "required": true, "schema": {"type": "array", "items": {"$ref": "#/definitions/api.TickPayload"}}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/ticks/{market}/{code}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["ticks"],
                "summary": "Query ticks in a time range",
                "parameters": [
                    {"type": "string", "name": "market", "in": "path", "required": true},
                    {"type": "string", "name": "code", "in": "path", "required": true},
                    {"type": "string", "name": "from", "in": "query", "required": true},
                    {"type": "string", "name": "to", "in": "query", "required": true},
                    {"type": "string", "name": "side", "in": "query"},
                    {"type": "integer", "name": "min_price", "in": "query"},
                    {"type": "integer", "name": "max_price", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/ticks/{market}/{code}/summary": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["ticks"],
                "summary": "Summarize ticks in a time range",
                "parameters": [
                    {"type": "string", "name": "market", "in": "path", "required": true},
                    {"type": "string", "name": "code", "in": "path", "required": true},
                    {"type": "string", "name": "from", "in": "query", "required": true},
                    {"type": "string", "name": "to", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ticks/{market}/{code}/stream": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["ticks"],
                "summary": "Stream ticks over a websocket",
                "parameters": [
                    {"type": "string", "name": "market", "in": "path", "required": true},
                    {"type": "string", "name": "code", "in": "path", "required": true},
                    {"type": "string", "name": "api_key", "in": "query", "description": "API key for clients that cannot set headers"}
                ],
                "responses": {"101": {"description": "Switching Protocols"}, "400": {"description": "Bad Request"}}
            }
        },
        "/series": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["series"],
                "summary": "List stored instruments",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chunks/{market}/{code}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["chunks"],
                "summary": "List stored chunks",
                "parameters": [
                    {"type": "string", "name": "market", "in": "path", "required": true},
                    {"type": "string", "name": "code", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/chunks/{market}/{code}/{base}": {
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["chunks"],
                "summary": "Delete one chunk",
                "parameters": [
                    {"type": "string", "name": "market", "in": "path", "required": true},
                    {"type": "string", "name": "code", "in": "path", "required": true},
                    {"type": "integer", "name": "base", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/codec/encode": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["codec"],
                "summary": "Show the binary encoding of a tick",
                "parameters": [
                    {"name": "tick", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.TickPayload"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Store statistics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "api.TickPayload": {
            "type": "object",
            "properties": {
                "market": {"type": "string"},
                "code": {"type": "string"},
                "time": {"type": "string", "format": "date-time"},
                "seq": {"type": "integer"},
                "price": {"type": "integer"},
                "qty": {"type": "integer"},
                "channel": {"type": "integer"},
                "side": {"type": "integer"},
                "order_no": {"type": "integer"},
                "tick_no": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "TickDB REST API",
	Description:      "REST API for TickDB, a chunked time-series store for market ticks.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
