package openapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Operation represents a single HTTP operation to surface in OpenAPI.
type Operation struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Parameters  []any          `json:"parameters,omitempty"`
	RequestBody any            `json:"requestBody,omitempty"`
	Responses   map[string]any `json:"responses"`
}

// Registry holds the operations of the JSON API.
type Registry struct {
	Ops []Operation
}

func NewRegistry() *Registry { return &Registry{Ops: []Operation{}} }

func (r *Registry) Register(op Operation) {
	if op.Method != "" {
		op.Method = strings.ToLower(op.Method)
	}
	r.Ops = append(r.Ops, op)
}

// Build produces a minimal OpenAPI 3.1 document for the registered operations.
// The API is authenticated by the storefront session cookie.
func (r *Registry) Build(serviceName, version, cookieName string) map[string]any {
	paths := map[string]any{}
	for _, op := range r.Ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"summary":   op.Summary,
			"tags":      op.Tags,
			"responses": op.Responses,
		}
		if op.Description != "" {
			m["description"] = op.Description
		}
		if len(op.Parameters) > 0 {
			m["parameters"] = op.Parameters
		}
		if op.RequestBody != nil {
			m["requestBody"] = op.RequestBody
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"session": map[string]any{"type": "apiKey", "in": "cookie", "name": cookieName},
			},
			"schemas": map[string]any{
				"Problem": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":   map[string]string{"type": "string"},
						"title":  map[string]string{"type": "string"},
						"status": map[string]string{"type": "integer"},
						"detail": map[string]string{"type": "string"},
					},
				},
			},
		},
		"security": []map[string]any{{"session": []string{}}},
	}
}

// JSONResponse is a helper for a response with an inline JSON schema.
func JSONResponse(description string, schema any) map[string]any {
	return map[string]any{
		"description": description,
		"content":     map[string]any{"application/json": map[string]any{"schema": schema}},
	}
}

// ProblemResponse references the shared problem schema.
func ProblemResponse(description string) map[string]any {
	return map[string]any{
		"description": description,
		"content":     map[string]any{"application/problem+json": map[string]any{"schema": map[string]string{"$ref": "#/components/schemas/Problem"}}},
	}
}

// ServeHandler returns an HTTP handler that serves the built OpenAPI JSON.
// The document is built per request so operations registered after the
// route is mounted are included.
func (r *Registry) ServeHandler(serviceName, version, cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Build(serviceName, version, cookieName))
	}
}
