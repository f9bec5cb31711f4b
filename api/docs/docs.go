// Package docs registers the OpenAPI description served under /swagger.
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
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new user",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/TokensResponse"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Email already in use", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Log in with email and password",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TokensResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/refresh-token": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate the refresh token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TokensResponse"}},
                    "400": {"description": "Refresh token required", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Auth"],
                "summary": "End the current session",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["Auth"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/posts": {
            "get": {
                "tags": ["Post"],
                "summary": "List posts",
                "parameters": [
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "published", "type": "boolean"},
                    {"in": "query", "name": "authorId", "type": "string"},
                    {"in": "query", "name": "author", "type": "string"},
                    {"in": "query", "name": "category", "type": "string"},
                    {"in": "query", "name": "categoryName", "type": "string"},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "minComments", "type": "integer"},
                    {"in": "query", "name": "maxComments", "type": "integer"},
                    {"in": "query", "name": "dateFrom", "type": "string"},
                    {"in": "query", "name": "dateTo", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid query"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Post"],
                "summary": "Create a post",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePostRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid input"}, "409": {"description": "Slug exists"}}
            }
        },
        "/posts/{id}": {
            "get": {
                "tags": ["Post"],
                "summary": "Get a post",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["Post"],
                "summary": "Update a post",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Not the author"}, "404": {"description": "Not found"}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["Post"],
                "summary": "Delete a post",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"204": {"description": "No Content"}, "403": {"description": "Not the author"}, "404": {"description": "Not found"}}
            }
        },
        "/posts/slug/{slug}": {
            "get": {
                "tags": ["Post"],
                "summary": "Get a post by slug",
                "parameters": [{"in": "path", "name": "slug", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/posts/{id}/cover": {
            "get": {
                "tags": ["Media"],
                "summary": "Presigned link to the post cover",
                "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "No cover"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["Media"],
                "summary": "Upload the post cover image",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "formData", "name": "file", "required": true, "type": "file"}
                ],
                "responses": {"201": {"description": "Created"}, "413": {"description": "Too large"}, "415": {"description": "Not an image"}}
            }
        },
        "/health": {"get": {"tags": ["System"], "summary": "Health", "responses": {"200": {"description": "OK"}}}},
        "/info": {"get": {"tags": ["System"], "summary": "Service information", "responses": {"200": {"description": "OK"}}}},
        "/version": {"get": {"tags": ["System"], "summary": "API version", "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "name"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 8, "maxLength": 72},
                "name": {"type": "string", "maxLength": 100}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "RefreshRequest": {
            "type": "object",
            "properties": {"refreshToken": {"type": "string"}}
        },
        "CreatePostRequest": {
            "type": "object",
            "required": ["title", "content"],
            "properties": {
                "title": {"type": "string", "maxLength": 200},
                "content": {"type": "string"},
                "categoryIds": {"type": "array", "items": {"type": "string"}},
                "published": {"type": "boolean"}
            }
        },
        "TokensResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "tokens": {
                    "type": "object",
                    "properties": {"accessToken": {"type": "string"}, "refreshToken": {"type": "string"}}
                }
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "error"},
                "error": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Blog API",
	Description:      "Blogging REST API with JWT access and refresh tokens.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
