// Package docs is generated by swaggo/swag. Regenerate with
// `swag init -g cmd/server/main.go`.
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
        "/api/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Вход в систему",
                "parameters": [{"in": "body", "name": "login", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Регистрация",
                "parameters": [{"in": "body", "name": "user", "required": true, "schema": {"$ref": "#/definitions/models.RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.User"}}, "409": {"description": "Conflict"}}
            }
        },
        "/api/logout": {
            "post": {"tags": ["Auth"], "summary": "Выход", "responses": {"200": {"description": "OK"}}}
        },
        "/api/user": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Текущий пользователь",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.User"}}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/forgot-password": {
            "post": {"tags": ["Auth"], "summary": "Запрос сброса пароля", "responses": {"200": {"description": "OK"}}}
        },
        "/api/reset-password": {
            "post": {"tags": ["Auth"], "summary": "Сброс пароля", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/verify-otp": {
            "post": {"tags": ["Verification"], "summary": "Подтверждение кода", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "429": {"description": "Too Many Requests"}}}
        },
        "/api/resend-otp": {
            "post": {"tags": ["Verification"], "summary": "Повторная отправка кода", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "429": {"description": "Too Many Requests"}}}
        },
        "/api/subscription-tiers": {
            "get": {"tags": ["Subscriptions"], "summary": "Тарифы", "responses": {"200": {"description": "OK"}}}
        },
        "/api/create-checkout-session": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Создать checkout-сессию",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.CheckoutRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "502": {"description": "Bad Gateway"}}
            }
        },
        "/api/properties/{id}": {
            "get": {"tags": ["Properties"], "summary": "Объявление", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/properties/{id}/subscription": {
            "post": {"tags": ["Subscriptions"], "summary": "Выбрать тариф объявления", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "409": {"description": "Conflict"}}}
        },
        "/api/checkout-sessions/{id}": {
            "get": {"tags": ["Subscriptions"], "summary": "Статус оплаты", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/checkout-sessions/{id}/receipt": {
            "get": {"produces": ["application/pdf"], "tags": ["Subscriptions"], "summary": "Квитанция (PDF)", "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/api/webhooks/stripe": {
            "post": {"tags": ["Subscriptions"], "summary": "Stripe webhook", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/api/admin/users": {
            "get": {"tags": ["Admin"], "summary": "Список пользователей", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        }
    },
    "definitions": {
        "models.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "models.RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "username"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "phone": {"type": "string"},
                "role": {"type": "string"},
                "username": {"type": "string", "maxLength": 64, "minLength": 3}
            }
        },
        "models.CheckoutRequest": {
            "type": "object",
            "required": ["cancelUrl", "level", "successUrl"],
            "properties": {
                "cancelUrl": {"type": "string"},
                "level": {"type": "string"},
                "propertyId": {"type": "integer"},
                "successUrl": {"type": "string"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string"},
                "emailVerified": {"type": "boolean"},
                "phoneVerified": {"type": "boolean"},
                "needsVerification": {"type": "boolean"},
                "subscriptionLevel": {"type": "string"},
                "subscriptionExpiresAt": {"type": "string"},
                "createdAt": {"type": "string"}
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
	Title:            "Realty API",
	Description:      "Accounts, OTP verification and paid listing tiers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
