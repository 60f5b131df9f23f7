package openapi

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore = `openapi: 3.0.3
info:
  title: Petstore
  version: 1.0.0
servers:
  - url: https://petstore.example.com/v1/
paths:
  /pets:
    get:
      operationId: listPets
      summary: List pets
      tags: [pets]
      parameters:
        - name: limit
          in: query
          required: true
          schema:
            type: integer
        - name: cursor
          in: query
          schema:
            type: string
      responses:
        "200":
          description: ok
    post:
      operationId: createPet
      tags: [pets, admin]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
                  example: Rex
                born:
                  type: string
                  format: date
                tags:
                  type: array
                  items:
                    type: string
      responses:
        "201":
          description: created
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema:
          type: string
    get:
      description: Returns one pet.
      parameters:
        - name: X-Request-Id
          in: header
          schema:
            type: string
            format: uuid
      responses:
        "200":
          description: ok
  /login:
    post:
      summary: Log in
      tags: [auth]
      requestBody:
        content:
          application/x-www-form-urlencoded:
            schema:
              type: object
              properties:
                user:
                  type: string
                  example: admin
                remember:
                  type: boolean
      responses:
        "204":
          description: ok
`

func convert(t *testing.T, opts ...Option) *Result {
	t.Helper()
	result, err := NewConverter(opts...).ConvertData(context.Background(), []byte(petstore))
	require.NoError(t, err)
	return result
}

func byName(t *testing.T, result *Result, name string) model.Definition {
	t.Helper()
	for _, def := range result.Requests {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("no request named %q", name)
	return model.Definition{}
}

func TestConvert(t *testing.T) {
	result := convert(t)

	assert.Equal(t, "Petstore", result.Name)
	require.Len(t, result.Requests, 4)
	require.Len(t, result.Environments, 1)
	assert.Equal(t, []model.Variable{{Key: "baseUrl", Value: "https://petstore.example.com/v1"}}, result.Environments[0].Variables)

	// sorted by path, then method
	names := make([]string, len(result.Requests))
	for i, def := range result.Requests {
		names[i] = def.Name
	}
	assert.Equal(t, []string{"Log in", "List pets", "createPet", "getPetsPetId"}, names)
}

func TestConvert_Parameters(t *testing.T) {
	result := convert(t)

	list := byName(t, result, "List pets")
	assert.Equal(t, model.MethodGet, list.Method)
	assert.Equal(t, "{{baseUrl}}/pets?limit=1", list.URL)

	get := byName(t, result, "getPetsPetId")
	assert.Equal(t, "{{baseUrl}}/pets/{{petId}}", get.URL)
	require.NotNil(t, get.Description)
	assert.Equal(t, "Returns one pet.", *get.Description)
	assert.Equal(t, []model.Header{{Key: "X-Request-Id", Value: "00000000-0000-0000-0000-000000000000"}}, get.Headers)
}

func TestConvert_Bodies(t *testing.T) {
	result := convert(t)

	create := byName(t, result, "createPet")
	assert.Equal(t, model.BodyRaw, create.BodyType)
	ct, _ := create.Header("Content-Type")
	assert.Equal(t, "application/json", ct)
	require.NotNil(t, create.Body)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(*create.Body), &body))
	assert.Equal(t, "Rex", body["name"])
	assert.Equal(t, "2024-01-01", body["born"])
	assert.Equal(t, []any{"example"}, body["tags"])

	login := byName(t, result, "Log in")
	assert.Equal(t, model.BodyURLEncoded, login.BodyType)
	require.NotNil(t, login.Body)
	assert.Equal(t, "remember=true&user=admin", *login.Body)
}

func TestConvert_Filters(t *testing.T) {
	result := convert(t, WithTags([]string{"pets"}), WithExcludeTags([]string{"admin"}))
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "List pets", result.Requests[0].Name)

	result = convert(t, WithOperations([]string{"createPet"}))
	require.Len(t, result.Requests, 1)
	assert.Equal(t, "createPet", result.Requests[0].Name)
}

func TestConvert_BaseURLOverride(t *testing.T) {
	result := convert(t, WithBaseURL("http://localhost:9000/"))
	assert.Equal(t, "http://localhost:9000", result.Environments[0].Variables[0].Value)
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0o644))

	result, err := NewConverter().ConvertFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, result.Requests, 4)

	_, err = NewConverter().ConvertFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToTitle(t *testing.T) {
	assert.Equal(t, "PetsPetId", toTitle("/pets/{petId}"))
	assert.Equal(t, "UserProfiles", toTitle("/user-profiles"))
}
