package openapi

import "maps"

// Shared error responses every operation can reference.
const (
	BadRequest   = "BadRequest"
	Unauthorized = "Unauthorized"
	NotFound     = "NotFound"
	Conflict     = "Conflict"
	BadGateway   = "BadGateway"
)

func errorResponse(description string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef("Error")},
		},
	}
}

// NewComponents creates Components with the error envelope and its responses.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"Error": {
				Type:     "object",
				Required: []string{"error"},
				Properties: map[string]*Schema{
					"error": {Type: "string", Description: "Error message"},
				},
			},
		},
		Responses: map[string]*Response{
			BadRequest:   errorResponse("Invalid request"),
			Unauthorized: errorResponse("Caller identity missing or rejected"),
			NotFound:     errorResponse("Resource not found or not owned by the caller"),
			Conflict:     errorResponse("Request conflicts with the current workflow state"),
			BadGateway:   errorResponse("A collaborating service failed"),
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// PageSchema returns an inline cursor page schema over the named item schema.
func PageSchema(item string) *Schema {
	return &Schema{
		Type:     "object",
		Required: []string{"items"},
		Properties: map[string]*Schema{
			"items":      {Type: "array", Items: SchemaRef(item)},
			"nextCursor": {Type: "string", Description: "Opaque cursor for the next page; absent on the last page"},
		},
	}
}
