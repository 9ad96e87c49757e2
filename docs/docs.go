// Package docs registers the OpenAPI description served by gin-swagger.
// Regenerate with: swag init -g cmd/tavern/main.go -o docs
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
        "/auth/challenge": {
            "post": {
                "tags": ["Auth"],
                "summary": "Request a login challenge",
                "operationId": "authChallenge",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ChallengeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChallengeResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a signed challenge for a token",
                "operationId": "authLogin",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stories": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Stories"],
                "summary": "Publish a story",
                "operationId": "publishStory",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PublishRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Daily publish limit reached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stories/daily": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Stories"],
                "summary": "Today's stories",
                "operationId": "fetchDailyStories",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "No stories published yet", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stories/{id}/whiskey": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Whiskey"],
                "summary": "Send one whiskey point to a story's author",
                "operationId": "sendWhiskey",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Idempotency key for safe retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "description": "Story ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Insufficient points", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Daily whiskey limit reached", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ChallengeRequest": {
            "type": "object",
            "required": ["address"],
            "properties": {"address": {"type": "string"}}
        },
        "handlers.ChallengeResponse": {
            "type": "object",
            "properties": {"challenge": {"type": "string"}}
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["address", "signature"],
            "properties": {"address": {"type": "string"}, "signature": {"type": "string"}}
        },
        "handlers.PublishRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {"title": {"type": "string"}, "content": {"type": "string"}, "is_pay": {"type": "boolean"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}
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
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Bottles Tavern API",
	Description:      "Story exchange, daily quotas and whiskey tipping for wallet users.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
