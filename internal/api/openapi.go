package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/lectern/internal/config"
	"github.com/JaimeStill/lectern/internal/records"
	"github.com/JaimeStill/lectern/pkg/openapi"
	"github.com/JaimeStill/lectern/pkg/routes"
)

const specPath = "/openapi.json"

var statusEnum = []any{
	records.StatusStarting,
	records.StatusExtractingText,
	records.StatusFormattingText,
	records.StatusTextFormattingComplete,
	records.StatusTranslating,
	records.StatusTranslationComplete,
	records.StatusConvertingToSpeech,
	records.StatusSucceeded,
	records.StatusFailed,
	records.StatusTimedOut,
}

var schemas = map[string]*openapi.Schema{
	"Parameters": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"translate":      {Type: "boolean"},
			"speech":         {Type: "boolean"},
			"targetLanguage": {Type: "string", Description: "BCP 47 tag, required when translate is set", Example: "fr"},
		},
	},
	"ErrorInfo": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"error": {Type: "string", Description: "Error kind", Example: "ExternalServiceError"},
			"cause": {Type: "string"},
		},
	},
	"StatusEntry": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"status":    {Type: "string", Enum: statusEnum},
			"timestamp": {Type: "string", Format: "date-time"},
			"error":     openapi.SchemaRef("ErrorInfo"),
		},
	},
	"Workflow": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"userId":        {Type: "string"},
			"workflowId":    {Type: "string"},
			"status":        {Type: "string", Enum: statusEnum},
			"statusHistory": {Type: "array", Items: openapi.SchemaRef("StatusEntry")},
			"parameters":    openapi.SchemaRef("Parameters"),
			"artifactPaths": {Type: "object", Description: "Storage key per artifact name"},
			"createdAt":     {Type: "string", Format: "date-time"},
			"updatedAt":     {Type: "string", Format: "date-time"},
			"error":         openapi.SchemaRef("ErrorInfo"),
			"execution": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"executionId": {Type: "string"},
					"status":      {Type: "string", Enum: []any{"RUNNING", "SUCCEEDED", "FAILED", "TIMED_OUT", "ABORTED"}},
					"startedAt":   {Type: "string", Format: "date-time"},
					"deadline":    {Type: "string", Format: "date-time"},
					"stoppedAt":   {Type: "string", Format: "date-time"},
				},
			},
		},
	},
	"StartRequest": {
		Type:     "object",
		Required: []string{"inputRef"},
		Properties: map[string]*openapi.Schema{
			"inputRef":       {Type: "string", Description: "Storage key of an uploaded document"},
			"translate":      {Type: "boolean"},
			"speech":         {Type: "boolean"},
			"targetLanguage": {Type: "string"},
		},
	},
	"Accepted": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"workflowId": {Type: "string"},
		},
	},
	"ArtifactSignal": {
		Type:     "object",
		Required: []string{"jobId", "status"},
		Properties: map[string]*openapi.Schema{
			"jobId":     {Type: "string"},
			"status":    {Type: "string", Enum: []any{"SUCCEEDED", "FAILED"}},
			"outputRef": {Type: "string", Description: "Required when status is SUCCEEDED"},
			"error":     {Type: "string"},
		},
	},
}

func failures(codes ...string) map[int]*openapi.Response {
	status := map[string]int{
		openapi.BadRequest:   http.StatusBadRequest,
		openapi.Unauthorized: http.StatusUnauthorized,
		openapi.NotFound:     http.StatusNotFound,
		openapi.Conflict:     http.StatusConflict,
		openapi.BadGateway:   http.StatusBadGateway,
	}
	out := make(map[int]*openapi.Response, len(codes)+1)
	for _, c := range codes {
		out[status[c]] = openapi.ResponseRef(c)
	}
	return out
}

func with(responses map[int]*openapi.Response, code int, r *openapi.Response) map[int]*openapi.Response {
	responses[code] = r
	return responses
}

var listParams = []*openapi.Parameter{
	openapi.QueryParam("limit", "integer", "Page size"),
	openapi.QueryParam("cursor", "string", "Cursor from the previous page"),
	openapi.QueryParam("sort_by", "string", "Time ordering; exclusive with filters", "createdAt", "updatedAt"),
	openapi.QueryParam("status", "string", "Only workflows in this status"),
	openapi.QueryParam("category", "string", "Only workflows in this category", "active", "completed", "failed"),
}

// operations documents each route by "METHOD path" relative to the base path.
var operations = map[string]*openapi.Operation{
	"POST /workflows": {
		Summary:     "Start a workflow over a stored document",
		Tags:        []string{"workflows"},
		RequestBody: openapi.RequestBodyJSON("StartRequest", true),
		Responses:   with(failures(openapi.BadRequest, openapi.Unauthorized), http.StatusAccepted, openapi.ResponseJSON("Workflow accepted", "Accepted")),
	},
	"POST /workflows/upload": {
		Summary: "Upload a document and start a workflow over it",
		Tags:    []string{"workflows"},
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"multipart/form-data": {Schema: &openapi.Schema{
					Type:     "object",
					Required: []string{"file"},
					Properties: map[string]*openapi.Schema{
						"file":           {Type: "string", Format: "binary"},
						"translate":      {Type: "boolean"},
						"speech":         {Type: "boolean"},
						"targetLanguage": {Type: "string"},
					},
				}},
			},
		},
		Responses: with(
			with(failures(openapi.BadRequest, openapi.Unauthorized), http.StatusRequestEntityTooLarge, &openapi.Response{Description: "File exceeds the upload limit"}),
			http.StatusAccepted, openapi.ResponseJSON("Workflow accepted", "Accepted"),
		),
	},
	"GET /workflows": {
		Summary:    "List the caller's workflows",
		Tags:       []string{"workflows"},
		Parameters: listParams,
		Responses: with(failures(openapi.BadRequest, openapi.Unauthorized), http.StatusOK, &openapi.Response{
			Description: "One page of workflows",
			Content:     map[string]*openapi.MediaType{"application/json": {Schema: openapi.PageSchema("Workflow")}},
		}),
	},
	"GET /workflows/{id}": {
		Summary:    "Get a workflow with its live execution",
		Tags:       []string{"workflows"},
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Workflow id")},
		Responses:  with(failures(openapi.Unauthorized, openapi.NotFound), http.StatusOK, openapi.ResponseJSON("Workflow", "Workflow")),
	},
	"GET /workflows/{id}/artifacts/{name}": {
		Summary: "Download a workflow artifact",
		Tags:    []string{"workflows"},
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Workflow id"),
			openapi.PathParam("name", "Artifact name such as formattedText or audioFile"),
		},
		Responses: with(failures(openapi.Unauthorized, openapi.NotFound), http.StatusOK, openapi.ResponseBinary("Artifact content", "application/octet-stream")),
	},
	"GET /workflows/export": {
		Summary:    "Export the caller's workflows as a workbook",
		Tags:       []string{"workflows"},
		Parameters: listParams[2:],
		Responses: with(failures(openapi.BadRequest, openapi.Unauthorized), http.StatusOK,
			openapi.ResponseBinary("XLSX workbook", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")),
	},
	"POST /executions/{id}/abort": {
		Summary:    "Abort a running execution",
		Tags:       []string{"executions"},
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Execution id")},
		Responses:  with(failures(openapi.Unauthorized, openapi.NotFound, openapi.Conflict), http.StatusAccepted, &openapi.Response{Description: "Abort recorded"}),
	},
	"POST /callbacks/extraction": {
		Summary:     "Deliver an extraction job outcome",
		Tags:        []string{"callbacks"},
		RequestBody: openapi.RequestBodyJSON("ArtifactSignal", true),
		Responses:   with(failures(openapi.BadRequest, openapi.Conflict), http.StatusAccepted, &openapi.Response{Description: "Signal accepted"}),
	},
}

// buildSpec documents every route in groups. Routes without an entry in
// operations are still listed so the spec never hides an endpoint.
func buildSpec(cfg *config.Config, groups ...routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(&cfg.API.OpenAPI, cfg.Version)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(schemas)

	var err error
	routes.Walk(func(prefix string, r routes.Route) {
		if err != nil {
			return
		}
		key := r.Key(prefix)
		op, ok := operations[key]
		if !ok {
			op = &openapi.Operation{
				Summary:   key,
				Responses: map[int]*openapi.Response{http.StatusOK: {Description: "OK"}},
			}
		}
		err = spec.Add(r.Method, prefix+r.Pattern, op)
	}, groups...)
	if err != nil {
		return nil, fmt.Errorf("build openapi spec: %w", err)
	}

	return openapi.MarshalJSON(spec)
}
