package curl

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
)

func TestParse_SimpleGet(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Method != "GET" {
		t.Errorf("expected method GET, got %s", parsed.Method)
	}
	if parsed.URL != "https://api.example.com/users" {
		t.Errorf("expected URL https://api.example.com/users, got %s", parsed.URL)
	}
}

func TestParse_PostWithData(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -X POST https://api.example.com/users -d '{"name":"John"}'`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Method != "POST" {
		t.Errorf("expected method POST, got %s", parsed.Method)
	}
	if parsed.Body != `{"name":"John"}` {
		t.Errorf("expected body {\"name\":\"John\"}, got %s", parsed.Body)
	}
}

func TestParse_WithHeaders(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -H "Content-Type: application/json" -H "Authorization: Bearer token123" -H "X-Tag: a" -H "X-Tag: b" https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []model.Header{
		{Key: "Content-Type", Value: "application/json"},
		{Key: "Authorization", Value: "Bearer token123"},
		{Key: "X-Tag", Value: "a"},
		{Key: "X-Tag", Value: "b"},
	}
	if !reflect.DeepEqual(parsed.Headers, expected) {
		t.Errorf("expected headers %v in order, got %v", expected, parsed.Headers)
	}
}

func TestParse_WithBasicAuth(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -u admin:password123 https://api.example.com/admin`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.BasicAuth != "admin:password123" {
		t.Errorf("expected basicAuth admin:password123, got %s", parsed.BasicAuth)
	}
}

func TestParse_ImplicitPost(t *testing.T) {
	converter := NewConverter()

	// Without -X, -d should imply POST
	parsed, err := converter.Parse(`curl -d "name=John" https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parsed.Method != "POST" {
		t.Errorf("expected implicit POST method, got %s", parsed.Method)
	}
}

func TestParse_Flags(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -k -L https://api.example.com`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !parsed.Insecure {
		t.Error("expected Insecure to be true")
	}
	if !parsed.FollowRedirects {
		t.Error("expected FollowRedirects to be true")
	}
}

func TestParse_ExplicitMethodWins(t *testing.T) {
	converter := NewConverter()

	parsed, err := converter.Parse(`curl -d '{"a":1}' -X PUT https://api.example.com/users/1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Method != "PUT" {
		t.Errorf("expected PUT, got %s", parsed.Method)
	}
}

func TestParse_MissingURL(t *testing.T) {
	converter := NewConverter()

	if _, err := converter.Parse(`curl -X POST -d x`); err == nil {
		t.Error("expected error for command without URL")
	}
	if _, err := converter.Parse(`curl -H`); err == nil {
		t.Error("expected error for flag without value")
	}
}

func TestToDefinition(t *testing.T) {
	converter := NewConverter()

	parsed := &ParsedCurl{
		Method:   "POST",
		URL:      "https://api.example.com/users",
		Headers:  []model.Header{{Key: "Content-Type", Value: "application/json"}},
		Body:     `{"name":"John"}`,
		BodyType: model.BodyRaw,
		Name:     "create_user",
	}

	def, err := converter.ToDefinition(parsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Method != model.MethodPost || def.URL != "https://api.example.com/users" {
		t.Errorf("unexpected method/url: %s %s", def.Method, def.URL)
	}
	if v, ok := def.Header("content-type"); !ok || v != "application/json" {
		t.Errorf("expected Content-Type header, got %q", v)
	}
	if def.Body == nil || *def.Body != `{"name":"John"}` {
		t.Errorf("expected body to be kept, got %v", def.Body)
	}
	if def.BodyType != model.BodyRaw {
		t.Errorf("expected raw body type, got %q", def.BodyType)
	}
}

func TestToDefinition_BasicAuth(t *testing.T) {
	converter := NewConverter()

	parsed := &ParsedCurl{
		Method:    "GET",
		URL:       "https://api.example.com/admin",
		BasicAuth: "admin:secret",
		Name:      "admin_access",
	}

	def, err := converter.ToDefinition(parsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, _ := def.Header("Authorization"); v != "Basic YWRtaW46c2VjcmV0" {
		t.Errorf("expected basic Authorization header, got %q", v)
	}
}

func TestConvertCommand(t *testing.T) {
	converter := NewConverter()

	def, err := converter.ConvertCommand(`curl -X POST -H "Content-Type: application/json" -d '{"name":"John"}' https://api.example.com/users`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.Name != "post_users" {
		t.Errorf("expected generated name post_users, got %s", def.Name)
	}
	if len(def.Headers) != 1 || def.Headers[0].Key != "Content-Type" {
		t.Errorf("expected one Content-Type header, got %v", def.Headers)
	}
}

func TestConvertCommand_FormAndURLEncoded(t *testing.T) {
	converter := NewConverter(WithNamePrefix("imported_"))

	def, err := converter.ConvertCommand(`curl -F name=John -F "bio=likes go" https://api.example.com/profile`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.BodyType != model.BodyFormData || def.Method != model.MethodPost {
		t.Errorf("expected POST form-data, got %s %q", def.Method, def.BodyType)
	}
	if *def.Body != `{"name":"John","bio":"likes go"}` {
		t.Errorf("unexpected form body %s", *def.Body)
	}
	if !strings.HasPrefix(def.Name, "imported_") {
		t.Errorf("expected name prefix, got %s", def.Name)
	}

	def, err = converter.ConvertCommand(`curl --data-urlencode "q=a b" --data-urlencode page=2 https://api.example.com/search`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.BodyType != model.BodyURLEncoded || *def.Body != "q=a b&page=2" {
		t.Errorf("unexpected urlencoded body %q (%q)", *def.Body, def.BodyType)
	}
}

func TestConvertCommand_RejectsUnsupportedMethod(t *testing.T) {
	converter := NewConverter()

	_, err := converter.ConvertCommand(`curl -X TRACE https://api.example.com`)
	if !errdef.Is(err, errdef.KindValidation) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestConvertFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.sh")
	content := "# exported\ncurl https://api.example.com/users\n\ncurl -X POST \\\n  -H 'Content-Type: application/json' \\\n  -d '{\"a\":1}' \\\n  https://api.example.com/users\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	defs, err := NewConverter().ConvertFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[1].Method != model.MethodPost || *defs[1].Body != `{"a":1}` {
		t.Errorf("unexpected second definition: %+v", defs[1])
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{
			input:    `-X POST -d "hello world"`,
			expected: []string{"-X", "POST", "-d", "hello world"},
		},
		{
			input:    `-H 'Content-Type: application/json'`,
			expected: []string{"-H", "Content-Type: application/json"},
		},
		{
			input:    `-d '{"key": "value"}'`,
			expected: []string{"-d", `{"key": "value"}`},
		},
	}

	for _, tt := range tests {
		tokens := tokenize(tt.input)
		if len(tokens) != len(tt.expected) {
			t.Errorf("tokenize(%q): got %d tokens, expected %d", tt.input, len(tokens), len(tt.expected))
			continue
		}
		for i, tok := range tokens {
			if tok != tt.expected[i] {
				t.Errorf("tokenize(%q)[%d]: got %q, expected %q", tt.input, i, tok, tt.expected[i])
			}
		}
	}
}

func TestGenerateName(t *testing.T) {
	tests := []struct {
		url    string
		method string
		expect string
	}{
		{"https://api.example.com/users", "GET", "get_users"},
		{"https://api.example.com/users/123", "GET", "get_users_123"},
		{"https://api.example.com/", "POST", "post_root"},
		{"https://api.example.com/api/v1/users", "PUT", "put_api_v1_users"},
	}

	for _, tt := range tests {
		result := generateName(tt.url, tt.method)
		if result != tt.expect {
			t.Errorf("generateName(%q, %q): got %q, expected %q", tt.url, tt.method, result, tt.expect)
		}
	}
}
