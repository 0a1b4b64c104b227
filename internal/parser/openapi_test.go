package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

const usersSpec = `
openapi: 3.0.0
info:
  title: Test API
  version: 1.0.0
  description: A test API
servers:
  - url: https://{region}.example.com/v1
    variables:
      region:
        default: eu
paths:
  /users:
    get:
      operationId: getUsers
      summary: Get all users
      description: Returns a list of users
      tags:
        - users
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        '200':
          description: Success
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/User'
    post:
      operationId: createUser
      summary: Create a user
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/User'
      responses:
        '201':
          description: Created
  /users/{id}:
    parameters:
      - $ref: '#/components/parameters/UserID'
      - name: X-Trace
        in: header
        description: shared
        schema:
          type: string
    delete:
      summary: Delete user
      parameters:
        - name: X-Trace
          in: header
          required: true
          description: own
          schema:
            type: string
      responses:
        '204':
          description: Deleted
        '404':
          description: Missing
    get:
      operationId: getUserById
      responses:
        '200':
          description: Success
components:
  parameters:
    UserID:
      name: id
      in: path
      required: true
      schema:
        type: integer
  schemas:
    User:
      type: object
      properties:
        id:
          type: integer
`

func parseYAML(t *testing.T, src string) (*Parser, *Model) {
	t.Helper()
	root, err := document.DecodeYAML([]byte(src))
	require.NoError(t, err)
	p := NewParser(nil)
	m, err := p.Parse(root)
	require.NoError(t, err)
	return p, m
}

func TestParse_ValidSpec(t *testing.T) {
	_, m := parseYAML(t, usersSpec)

	assert.Equal(t, "3.0.0", m.DocumentVersion)
	assert.Equal(t, "Test API", m.Info.Title)
	assert.Equal(t, "1.0.0", m.Info.Version)
	assert.Equal(t, "A test API", m.Info.Description)
	require.Len(t, m.Servers, 1)
	assert.Equal(t, "eu", m.Servers[0].Variables["region"])
	require.Len(t, m.Components, 1)
	assert.Equal(t, "User", m.Components[0].Key)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
		path    string
	}{
		{"missing info", `{"openapi": "3.0.0", "paths": {}}`, gwerrors.ErrMissingInfo, ""},
		{"missing info and version", `{"paths": {}}`, gwerrors.ErrMissingInfo, ""},
		{"missing version", `{"info": {"title": "t", "version": "1"}, "paths": {}}`, gwerrors.ErrParse, "#/openapi"},
		{"missing title", `{"openapi": "3.0.0", "info": {"version": "1"}, "paths": {}}`, gwerrors.ErrParse, "#/info/title"},
		{"missing info version", `{"openapi": "3.0.0", "info": {"title": "t"}, "paths": {}}`, gwerrors.ErrParse, "#/info/version"},
		{"missing paths", `{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}}`, gwerrors.ErrParse, "#/paths"},
		{"paths not object", `{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": []}`, gwerrors.ErrParse, "#/paths"},
		{"root not object", `[1, 2]`, gwerrors.ErrParse, "#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := document.DecodeJSON([]byte(tt.src))
			require.NoError(t, err)

			_, err = NewParser(nil).Parse(root)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.path != "" {
				var parseErr *gwerrors.ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, tt.path, parseErr.Path)
			}
		})
	}
}

func TestParse_EmptyPaths(t *testing.T) {
	root, err := document.DecodeJSON([]byte(`{"openapi": "3.0.0", "info": {"title": "t", "version": "1"}, "paths": {}}`))
	require.NoError(t, err)

	p := NewParser(nil)
	m, err := p.Parse(root)
	require.NoError(t, err)
	assert.Empty(t, p.ExtractEndpoints(m, "spec-1"))
}

func TestParse_NumericVersions(t *testing.T) {
	_, m := parseYAML(t, "openapi: 3.1\ninfo:\n  title: t\n  version: 2.0\npaths: {}\n")
	assert.Equal(t, "3.1", m.DocumentVersion)
	assert.Equal(t, "2.0", m.Info.Version)
}

func TestExtractEndpoints(t *testing.T) {
	p, m := parseYAML(t, usersSpec)
	endpoints := p.ExtractEndpoints(m, "spec-1")
	require.Len(t, endpoints, 4)

	got := make([]string, len(endpoints))
	for i, e := range endpoints {
		got[i] = e.Method + " " + e.Path
	}
	assert.Equal(t, []string{"GET /users", "POST /users", "DELETE /users/{id}", "GET /users/{id}"}, got)

	list := endpoints[0]
	assert.Equal(t, "getUsers", list.OperationID)
	assert.Equal(t, "spec-1", list.SpecID)
	assert.Equal(t, []string{"users"}, list.Tags)
	assert.Equal(t, "#/paths/~1users/get", list.Pointer)
	require.Len(t, list.Parameters, 1)
	assert.Equal(t, models.Parameter{
		Name:   "limit",
		In:     models.InQuery,
		Type:   "integer",
		Schema: "#/paths/~1users/get/parameters/0/schema",
	}, list.Parameters[0])
	require.Len(t, list.Responses, 1)
	assert.Equal(t, "200", list.Responses[0].Status)
	assert.Equal(t, []string{"application/json"}, list.Responses[0].ContentTypes)

	create := endpoints[1]
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Required)
	assert.Equal(t, "#/components/schemas/User", create.RequestBody.Schema)
	assert.Equal(t, []string{"application/json"}, create.RequestBody.ContentTypes)

	del := endpoints[2]
	assert.Equal(t, "delete_users_id", del.OperationID)
	require.Len(t, del.Parameters, 2)

	id := del.Parameters[0]
	assert.Equal(t, "id", id.Name)
	assert.Equal(t, models.InPath, id.In)
	assert.True(t, id.Required)
	assert.Equal(t, "integer", id.Type)

	trace := del.Parameters[1]
	assert.Equal(t, "own", trace.Description)
	assert.True(t, trace.Required)

	statuses := []string{del.Responses[0].Status, del.Responses[1].Status}
	assert.Equal(t, []string{"204", "404"}, statuses)

	byID := endpoints[3]
	require.Len(t, byID.Parameters, 2)
	assert.Equal(t, "shared", byID.Parameters[1].Description)
	assert.False(t, byID.Parameters[1].Required)
}

func TestExtractEndpoints_DeclarationOrderAndDuplicates(t *testing.T) {
	root, err := document.DecodeJSON([]byte(`{
		"openapi": "3.0.0",
		"info": {"title": "t", "version": "1"},
		"paths": {
			"/a": {"put": {"responses": {}}, "get": {"responses": {}}, "x-internal": true, "summary": "s"},
			"/b": {"get": {"operationId": "first"}},
			"/a": {"patch": {"responses": {}}, "trace": {"responses": {}}},
			"/b": {"get": {"operationId": "second"}}
		}
	}`))
	require.NoError(t, err)

	p := NewParser(nil)
	m, err := p.Parse(root)
	require.NoError(t, err)

	endpoints := p.ExtractEndpoints(m, "s")
	require.Len(t, endpoints, 3)
	assert.Equal(t, "PATCH", endpoints[0].Method)
	assert.Equal(t, "TRACE", endpoints[1].Method)
	assert.Equal(t, "second", endpoints[2].OperationID)
}

func TestExtractEndpoints_Swagger(t *testing.T) {
	root, err := document.DecodeJSON([]byte(`{
		"swagger": "2.0",
		"info": {"title": "Petstore", "version": "1.0"},
		"host": "petstore.swagger.io",
		"basePath": "/v2",
		"schemes": ["https", "http"],
		"consumes": ["application/json"],
		"paths": {
			"/pet": {"post": {
				"parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/Pet"}}],
				"responses": {"405": {"description": "Invalid input"}}
			}},
			"/pet/{petId}/uploadImage": {"post": {
				"parameters": [
					{"in": "path", "name": "petId", "type": "integer"},
					{"in": "formData", "name": "file", "type": "file"}
				],
				"responses": {"200": {"description": "ok", "schema": {"type": "object"}}}
			}}
		},
		"definitions": {"Pet": {"type": "object", "properties": {"name": {"type": "string"}}}}
	}`))
	require.NoError(t, err)

	p := NewParser(nil)
	m, err := p.Parse(root)
	require.NoError(t, err)
	assert.True(t, m.Swagger())
	require.Len(t, m.Components, 1)

	base, err := m.BaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "https://petstore.swagger.io/v2", base)

	endpoints := p.ExtractEndpoints(m, "s")
	require.Len(t, endpoints, 2)

	create := endpoints[0]
	assert.Empty(t, create.Parameters)
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Required)
	assert.Equal(t, "#/definitions/Pet", create.RequestBody.Schema)

	upload := endpoints[1]
	require.Len(t, upload.Parameters, 1)
	assert.Equal(t, "integer", upload.Parameters[0].Type)
	require.NotNil(t, upload.RequestBody)
	assert.Equal(t, []string{formContentType}, upload.RequestBody.ContentTypes)
	assert.Equal(t, []string{"application/json"}, upload.Responses[0].ContentTypes)
}

func TestEndpointID(t *testing.T) {
	a := EndpointID("spec", "get", "/pets/{id}")
	assert.Len(t, a, 32)
	assert.Equal(t, a, EndpointID("spec", "GET", "/pets/{id}"))
	assert.NotEqual(t, a, EndpointID("spec", "DELETE", "/pets/{id}"))
	assert.NotEqual(t, a, EndpointID("other", "GET", "/pets/{id}"))
}

func TestTemplateParams(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, TemplateParams("/x/{a}/y/{b}.json"))
	assert.Nil(t, TemplateParams("/static"))
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		servers  []Server
		override string
		want     string
		wantErr  bool
	}{
		{"first server", []Server{{URL: "https://api.example.com/v1/"}, {URL: "https://other"}}, "", "https://api.example.com/v1", false},
		{"variables", []Server{{URL: "https://{env}.example.com:{port}", Variables: map[string]string{"env": "prod", "port": "8443"}}}, "", "https://prod.example.com:8443", false},
		{"override wins", []Server{{URL: "/relative"}}, "http://localhost:9000/", "http://localhost:9000", false},
		{"relative without override", []Server{{URL: "/v1"}}, "", "", true},
		{"no servers", nil, "", "", true},
		{"variable without default", []Server{{URL: "https://{env}.example.com"}}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Model{Servers: tt.servers}
			got, err := m.BaseURL(tt.override)
			if tt.wantErr {
				assert.ErrorIs(t, err, gwerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		root, err := document.DecodeYAML([]byte(usersSpec))
		require.NoError(t, err)

		report := NewParser(nil).Validate(context.Background(), root, "")
		assert.True(t, report.IsValid, "%+v", report.Errors)
		assert.Empty(t, report.Errors)
	})

	t.Run("collects every problem", func(t *testing.T) {
		root, err := document.DecodeJSON([]byte(`{
			"openapi": "3.0.0",
			"info": {"title": "t", "version": "1"},
			"paths": {
				"/pets/{id}": {
					"get": {"operationId": "dup", "responses": {"200": {"description": "ok"}}},
					"put": {
						"operationId": "dup",
						"parameters": [
							{"name": "id", "in": "path", "schema": {"type": "string"}},
							{"name": "other", "in": "path", "schema": {"type": "string"}}
						]
					}
				}
			},
			"components": {"schemas": {
				"Pet": {"type": "object", "properties": {"owner": {"$ref": "#/components/schemas/Owner"}}}
			}}
		}`))
		require.NoError(t, err)

		report := NewParser(nil).Validate(context.Background(), root, "")
		assert.False(t, report.IsValid)

		sources := map[string]int{}
		for _, e := range report.Errors {
			sources[e.Source]++
		}
		assert.Equal(t, 1, sources[SourceEndpoints], "undeclared {id} on GET")
		assert.Equal(t, 1, sources[SourceServers])
		assert.Equal(t, 1, sources[SourceCompiler])

		var compileIssue models.ValidationIssue
		for _, e := range report.Errors {
			if e.Source == SourceCompiler {
				compileIssue = e
			}
		}
		assert.Equal(t, "#/components/schemas/Pet", compileIssue.Path)

		messages := make([]string, 0)
		for _, w := range report.Warnings {
			if w.Source == SourceEndpoints {
				messages = append(messages, w.Message)
			}
		}
		assert.Len(t, messages, 3, "duplicate operationId, missing responses, undeclared path parameter")
	})

	t.Run("structural problems stop early", func(t *testing.T) {
		root, err := document.DecodeJSON([]byte(`{"paths": []}`))
		require.NoError(t, err)

		report := NewParser(nil).Validate(context.Background(), root, "")
		assert.False(t, report.IsValid)
		assert.Len(t, report.Errors, 3)
		assert.Empty(t, report.Warnings)
	})
}
