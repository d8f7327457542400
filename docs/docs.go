// Package docs serves the OpenAPI description of the HTTP API to gin-swagger.
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
        "/availability": {
            "post": {"summary": "Check availability", "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/floorplan/{date}": {
            "get": {"summary": "Floor plan of a date", "parameters": [{"type": "string", "name": "date", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/floorplan/{date}/free": {
            "get": {"summary": "Free furniture of a date", "parameters": [{"type": "string", "name": "date", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations": {
            "post": {"summary": "Create reservation (idempotent)", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "429": {"description": "Too Many Requests"}}}
        },
        "/reservations/{id}": {
            "get": {"summary": "Get reservation with assignments", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "patch": {"summary": "Update reservation", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "423": {"description": "Locked"}}}
        },
        "/reservations/{id}/family": {
            "get": {"summary": "Get multi-day family", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/cancel": {
            "post": {"summary": "Cancel reservation or family", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/state": {
            "post": {"summary": "Change reservation state", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/lock": {
            "put": {"summary": "Lock or unlock reservation furniture", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/reservations/{id}/reassign": {
            "post": {"summary": "Reassign furniture for one date", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "423": {"description": "Locked"}}}
        },
        "/move/sessions": {
            "post": {"summary": "Activate move mode for a date", "responses": {"201": {"description": "Created"}}}
        },
        "/move/sessions/{sid}": {
            "get": {"summary": "Get move session pool", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}},
            "delete": {"summary": "Deactivate move mode", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/move/sessions/{sid}/unassign": {
            "post": {"summary": "Pull furniture into the pool", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "423": {"description": "Locked"}}}
        },
        "/move/sessions/{sid}/assign": {
            "post": {"summary": "Assign furniture on the session date", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "423": {"description": "Locked"}}}
        },
        "/move/sessions/{sid}/restore": {
            "post": {"summary": "Restore pooled reservation", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/move/sessions/{sid}/undo": {
            "post": {"summary": "Undo the last move", "parameters": [{"type": "string", "name": "sid", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/admin/blocks": {
            "get": {"summary": "List furniture blocks", "responses": {"200": {"description": "OK"}}},
            "post": {"summary": "Create furniture block", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/admin/blocks/{id}": {
            "delete": {"summary": "Delete furniture block", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Beach Club Reservations API",
	Description:      "Furniture availability, reservations, move mode and administrative holds.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
