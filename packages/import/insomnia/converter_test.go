package insomnia

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
)

func convert(t *testing.T, export string, opts ...Option) *Result {
	t.Helper()
	result, err := NewConverter(opts...).Convert([]byte(export))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestConvert_SimpleRequest(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"__export_format": 4,
		"resources": [
			{"_id": "wrk_1", "_type": "workspace", "name": "Users API"},
			{
				"_id": "req_1",
				"_type": "request",
				"parentId": "wrk_1",
				"name": "Get Users",
				"method": "get",
				"url": "https://api.example.com/users"
			}
		]
	}`)

	if result.Name != "Users API" {
		t.Errorf("expected workspace name, got %q", result.Name)
	}
	if len(result.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(result.Requests))
	}
	def := result.Requests[0]
	if def.Name != "Get Users" || def.Method != model.MethodGet || def.URL != "https://api.example.com/users" {
		t.Errorf("unexpected definition: %+v", def)
	}
	if def.Body != nil {
		t.Errorf("expected no body, got %q", *def.Body)
	}
}

func TestConvert_RequestWithHeaders(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1",
				"_type": "request",
				"parentId": "wrk_1",
				"name": "Create User",
				"method": "POST",
				"url": "https://api.example.com/users",
				"headers": [
					{"name": "Accept", "value": "application/json"},
					{"name": "X-Debug", "value": "1", "disabled": true},
					{"name": "Accept", "value": "text/plain"}
				]
			}
		]
	}`)

	want := []model.Header{
		{Key: "Accept", Value: "application/json"},
		{Key: "Accept", Value: "text/plain"},
	}
	if got := result.Requests[0].Headers; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestConvert_RequestWithBody(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1",
				"_type": "request",
				"name": "Create User",
				"method": "POST",
				"url": "https://api.example.com/users",
				"body": {"mimeType": "application/json", "text": "{\"name\": \"{{ _.userName }}\"}"}
			}
		]
	}`)

	def := result.Requests[0]
	if def.Body == nil || *def.Body != `{"name": "{{userName}}"}` {
		t.Fatalf("unexpected body: %v", def.Body)
	}
	if def.BodyType != model.BodyRaw {
		t.Errorf("expected raw body type, got %q", def.BodyType)
	}
	if ct, _ := def.Header("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type from mime type, got %q", ct)
	}
}

func TestConvert_FormBodies(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1",
				"_type": "request",
				"name": "Login",
				"method": "POST",
				"url": "https://api.example.com/login",
				"body": {
					"mimeType": "application/x-www-form-urlencoded",
					"params": [
						{"name": "user", "value": "{{ _.user }}"},
						{"name": "skip", "value": "x", "disabled": true},
						{"name": "remember", "value": "true"}
					]
				}
			},
			{
				"_id": "req_2",
				"_type": "request",
				"name": "Upload",
				"method": "POST",
				"url": "https://api.example.com/upload",
				"body": {
					"mimeType": "multipart/form-data",
					"params": [{"name": "title", "value": "report"}, {"name": "owner", "value": "me"}]
				}
			}
		]
	}`)

	login := result.Requests[0]
	if login.BodyType != model.BodyURLEncoded || *login.Body != "user={{user}}&remember=true" {
		t.Errorf("unexpected urlencoded body: %q %q", login.BodyType, *login.Body)
	}
	upload := result.Requests[1]
	if upload.BodyType != model.BodyFormData || *upload.Body != `{"title":"report","owner":"me"}` {
		t.Errorf("unexpected form body: %q %q", upload.BodyType, *upload.Body)
	}
}

func TestConvert_RequestWithVariables(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1",
				"_type": "request",
				"name": "Get User",
				"method": "GET",
				"url": "{{ _.baseUrl }}/users/{{ userId }}"
			}
		]
	}`)

	if got := result.Requests[0].URL; got != "{{baseUrl}}/users/{{userId}}" {
		t.Errorf("expected converted placeholders, got %q", got)
	}
}

func TestConvert_Authentication(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1", "_type": "request", "name": "Basic", "method": "GET",
				"url": "https://api.example.com",
				"authentication": {"type": "basic", "username": "admin", "password": "secret"}
			},
			{
				"_id": "req_2", "_type": "request", "name": "Bearer", "method": "GET",
				"url": "https://api.example.com",
				"authentication": {"type": "bearer", "token": "{{ _.token }}"}
			},
			{
				"_id": "req_3", "_type": "request", "name": "Templated", "method": "GET",
				"url": "https://api.example.com",
				"authentication": {"type": "basic", "username": "{{ _.user }}", "password": "x"}
			},
			{
				"_id": "req_4", "_type": "request", "name": "OAuth", "method": "GET",
				"url": "https://api.example.com",
				"authentication": {"type": "oauth2"}
			}
		]
	}`)

	if got, _ := result.Requests[0].Header("Authorization"); got != "Basic YWRtaW46c2VjcmV0" {
		t.Errorf("unexpected basic header %q", got)
	}
	if got, _ := result.Requests[1].Header("Authorization"); got != "Bearer {{token}}" {
		t.Errorf("unexpected bearer header %q", got)
	}
	if _, ok := result.Requests[2].Header("Authorization"); ok {
		t.Error("expected templated basic auth to be skipped")
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], "templated basic credentials are not supported") {
		t.Errorf("unexpected templated basic warning %q", result.Warnings[0])
	}
	if !strings.Contains(result.Warnings[1], "oauth2 authentication is not supported") {
		t.Errorf("unexpected oauth2 warning %q", result.Warnings[1])
	}
}

func TestConvert_RequestWithQueryParams(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{
				"_id": "req_1",
				"_type": "request",
				"name": "Search Users",
				"method": "GET",
				"url": "https://api.example.com/users?active=1",
				"parameters": [
					{"name": "q", "value": "{{ _.query }}"},
					{"name": "debug", "value": "1", "disabled": true},
					{"name": "limit", "value": "10"}
				]
			}
		]
	}`)

	if got := result.Requests[0].URL; got != "https://api.example.com/users?active=1&q={{query}}&limit=10" {
		t.Errorf("unexpected URL %q", got)
	}
}

func TestConvert_RequestInFolder(t *testing.T) {
	result := convert(t, `{
		"_type": "export",
		"resources": [
			{"_id": "req_1", "_type": "request", "parentId": "fld_2", "name": "Get Users", "method": "GET", "url": "https://api.example.com/users"},
			{"_id": "fld_1", "_type": "request_group", "parentId": "wrk_1", "name": "Admin"},
			{"_id": "fld_2", "_type": "request_group", "parentId": "fld_1", "name": "Users"}
		]
	}`)

	if got := result.Requests[0].Name; got != "Admin / Users / Get Users" {
		t.Errorf("expected folder path in request name, got %q", got)
	}

	result = convert(t, `{"resources": [
		{"_id": "fld_1", "_type": "request_group", "name": "Users"},
		{"_id": "req_1", "_type": "request", "parentId": "fld_1", "name": "List", "url": "https://a.example.com"}
	]}`, WithFolderSeparator("/"))
	if got := result.Requests[0].Name; got != "Users/List" {
		t.Errorf("expected custom separator, got %q", got)
	}
}

func TestConvert_Environments(t *testing.T) {
	export := `{
		"_type": "export",
		"resources": [
			{
				"_id": "env_1",
				"_type": "environment",
				"name": "Base Environment",
				"data": {"baseUrl": "https://api.example.com", "retries": 3, "auth": {"user": "admin", "token": "{{ _.secret }}"}, "debug": null}
			}
		]
	}`

	result := convert(t, export)
	if len(result.Environments) != 1 {
		t.Fatalf("expected 1 environment, got %d", len(result.Environments))
	}
	want := []model.Variable{
		{Key: "baseUrl", Value: "https://api.example.com"},
		{Key: "retries", Value: "3"},
		{Key: "auth.user", Value: "admin"},
		{Key: "auth.token", Value: "{{secret}}"},
		{Key: "debug"},
	}
	if got := result.Environments[0].Variables; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	result = convert(t, export, WithEnvironments(false))
	if len(result.Environments) != 0 {
		t.Errorf("expected environments to be skipped, got %d", len(result.Environments))
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name   string
		export string
	}{
		{"not json", `{"resources": [`},
		{"wrong type", `{"_type": "request", "resources": []}`},
		{"unsupported method", `{"resources": [{"_id": "r", "_type": "request", "name": "x", "method": "TRACE", "url": "https://a.example.com"}]}`},
		{"missing url", `{"resources": [{"_id": "r", "_type": "request", "name": "x", "method": "GET"}]}`},
		{"environment not an object", `{"resources": [{"_id": "e", "_type": "environment", "name": "e", "data": [1]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConverter().Convert([]byte(tt.export))
			if err == nil {
				t.Fatal("expected error")
			}
			var de *errdef.Error
			if !errors.As(err, &de) || de.Kind != errdef.KindValidation {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	content := `{"resources": [{"_id": "r", "_type": "request", "name": "ping", "method": "HEAD", "url": "https://a.example.com"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewConverter().ConvertFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Requests) != 1 || result.Requests[0].Method != model.MethodHead {
		t.Errorf("unexpected result: %+v", result.Requests)
	}

	if _, err := NewConverter().ConvertFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConvertVariable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"{{ _.baseUrl }}", "{{baseUrl}}"},
		{"{{_.token}}", "{{token}}"},
		{"{{ userId }}", "{{userId}}"},
		{"{{ _.auth.user }}", "{{auth.user}}"},
		{"no variables", "no variables"},
		{"{% uuid %}", "{% uuid %}"},
	}

	for _, tt := range tests {
		if got := convertVariable(tt.input); got != tt.expected {
			t.Errorf("convertVariable(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
