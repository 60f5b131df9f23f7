// Package openapi converts OpenAPI 3 documents into request definitions.
// Operations address their server through a {{baseUrl}} placeholder, and
// the server URL is returned as an environment set defining it.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"github.com/getkin/kin-openapi/openapi3"
)

// BaseURLVariable is the variable every converted URL starts with.
const BaseURLVariable = "baseUrl"

// Converter converts OpenAPI specs to request definitions
type Converter struct {
	baseURL     string
	includeTags []string
	excludeTags []string
	includeOnly []string // specific operation IDs
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the document servers
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithTags filters operations by tags
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.includeTags = tags
	}
}

// WithExcludeTags excludes operations with these tags
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations filters to specific operation IDs
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.includeOnly = ops
	}
}

// NewConverter creates a new OpenAPI converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is everything converted from one document.
type Result struct {
	// Name is the document title, suitable for a collection.
	Name         string
	Requests     []model.Definition
	Environments []model.EnvironmentSet
	// Warnings carries document validation problems that did not stop
	// the conversion.
	Warnings []string
}

// ConvertFile converts an OpenAPI file or http(s) URL.
func (c *Converter) ConvertFile(ctx context.Context, path string) (*Result, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true

	var doc *openapi3.T
	var err error
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		var u *url.URL
		if u, err = url.Parse(path); err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(path)
	}
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "load OpenAPI document")
	}

	return c.Convert(ctx, doc)
}

// ConvertData converts an OpenAPI document held in memory, JSON or YAML.
func (c *Converter) ConvertData(ctx context.Context, data []byte) (*Result, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "load OpenAPI document")
	}
	return c.Convert(ctx, doc)
}

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// Convert converts a loaded OpenAPI document. Paths are visited in sorted
// order so repeated imports produce the same definitions.
func (c *Converter) Convert(ctx context.Context, doc *openapi3.T) (*Result, error) {
	result := &Result{}
	if err := doc.Validate(ctx); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("document validation: %v", err))
	}
	if doc.Info != nil {
		result.Name = doc.Info.Title
	}

	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = getBaseURL(doc)
	}
	envName := "openapi"
	if result.Name != "" {
		envName = result.Name
	}
	result.Environments = []model.EnvironmentSet{{
		Name:      envName,
		Variables: []model.Variable{{Key: BaseURLVariable, Value: strings.TrimSuffix(baseURL, "/")}},
	}}

	if doc.Paths == nil {
		return result, nil
	}
	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}
		for _, method := range methods {
			op := item.GetOperation(method)
			if op == nil || !c.shouldInclude(op) {
				continue
			}
			def := c.convertOperation(path, method, op, item.Parameters)
			if err := request.Validate(&def); err != nil {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}
			result.Requests = append(result.Requests, def)
		}
	}
	return result, nil
}

func getBaseURL(doc *openapi3.T) string {
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return doc.Servers[0].URL
	}
	return "http://localhost:3000"
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	if len(c.includeOnly) > 0 && !slices.Contains(c.includeOnly, op.OperationID) {
		return false
	}
	if len(c.includeTags) > 0 && !slices.ContainsFunc(op.Tags, func(tag string) bool {
		return slices.Contains(c.includeTags, tag)
	}) {
		return false
	}
	return !slices.ContainsFunc(op.Tags, func(tag string) bool {
		return slices.Contains(c.excludeTags, tag)
	})
}

func (c *Converter) convertOperation(path, method string, op *openapi3.Operation, pathParams openapi3.Parameters) model.Definition {
	name := op.Summary
	if name == "" {
		name = op.OperationID
	}
	if name == "" {
		name = strings.ToLower(method) + strings.ReplaceAll(toTitle(path), "/", "")
	}

	def := model.Definition{
		Name:   name,
		Method: model.Method(method),
	}
	if op.Description != "" {
		desc := op.Description
		def.Description = &desc
	}

	params := make(openapi3.Parameters, 0, len(pathParams)+len(op.Parameters))
	params = append(params, pathParams...)
	params = append(params, op.Parameters...)

	var query []string
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		param := ref.Value
		switch param.In {
		case openapi3.ParameterInPath:
			// {id} becomes the {{id}} placeholder
			path = strings.ReplaceAll(path, "{"+param.Name+"}", "{{"+param.Name+"}}")
		case openapi3.ParameterInQuery:
			if param.Required {
				query = append(query, param.Name+"="+paramExample(param))
			}
		case openapi3.ParameterInHeader:
			def.Headers = append(def.Headers, model.Header{Key: param.Name, Value: paramExample(param)})
		}
	}

	def.URL = "{{" + BaseURLVariable + "}}" + path
	if len(query) > 0 {
		def.URL += "?" + strings.Join(query, "&")
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		applyBody(&def, op.RequestBody.Value)
	}
	return def
}

// applyBody prefers a JSON body, then urlencoded, then multipart.
func applyBody(def *model.Definition, body *openapi3.RequestBody) {
	contentTypes := make([]string, 0, len(body.Content))
	for ct := range body.Content {
		contentTypes = append(contentTypes, ct)
	}
	sort.Strings(contentTypes)

	pick := func(match func(string) bool) (string, *openapi3.Schema) {
		for _, ct := range contentTypes {
			media := body.Content[ct]
			if match(ct) && media != nil && media.Schema != nil {
				return ct, media.Schema.Value
			}
		}
		return "", nil
	}

	if ct, schema := pick(func(ct string) bool { return strings.Contains(ct, "json") }); schema != nil {
		data, err := json.MarshalIndent(exampleValue(schema, 0), "", "  ")
		if err != nil {
			return
		}
		text := string(data)
		def.Body = &text
		def.BodyType = model.BodyRaw
		def.Headers = append(def.Headers, model.Header{Key: "Content-Type", Value: ct})
		return
	}
	if _, schema := pick(func(ct string) bool { return ct == "application/x-www-form-urlencoded" }); schema != nil {
		values := url.Values{}
		for name, value := range formFields(schema) {
			values.Set(name, value)
		}
		text := values.Encode()
		def.Body = &text
		def.BodyType = model.BodyURLEncoded
		return
	}
	if _, schema := pick(func(ct string) bool { return ct == "multipart/form-data" }); schema != nil {
		data, err := json.Marshal(formFields(schema))
		if err != nil {
			return
		}
		text := string(data)
		def.Body = &text
		def.BodyType = model.BodyFormData
	}
}

func formFields(schema *openapi3.Schema) map[string]string {
	fields := make(map[string]string, len(schema.Properties))
	for name, prop := range schema.Properties {
		value := "example"
		if prop != nil && prop.Value != nil {
			if v := exampleValue(prop.Value, 1); v != nil {
				value = fmt.Sprint(v)
			}
		}
		fields[name] = value
	}
	return fields
}

func schemaType(schema *openapi3.Schema) string {
	if schema == nil || schema.Type == nil {
		return ""
	}
	if types := schema.Type.Slice(); len(types) > 0 {
		return types[0]
	}
	return ""
}

func paramExample(param *openapi3.Parameter) string {
	if param.Example != nil {
		return fmt.Sprint(param.Example)
	}
	if param.Schema != nil && param.Schema.Value != nil && schemaType(param.Schema.Value) != "" {
		return fmt.Sprint(exampleValue(param.Schema.Value, 1))
	}
	return "{{" + param.Name + "}}"
}

// exampleValue builds a JSON-compatible sample for schema.
func exampleValue(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > 5 {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	switch schemaType(schema) {
	case "object":
		obj := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			if prop == nil {
				obj[name] = nil
				continue
			}
			obj[name] = exampleValue(prop.Value, depth+1)
		}
		return obj
	case "array":
		if schema.Items != nil && schema.Items.Value != nil {
			return []any{exampleValue(schema.Items.Value, depth+1)}
		}
		return []any{}
	case "string":
		switch schema.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		}
		return "example"
	case "integer":
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return 1
	case "number":
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.5
	case "boolean":
		return true
	}
	return nil
}

// toTitle converts a path to title case, dropping separators.
func toTitle(s string) string {
	var result strings.Builder
	capitalizeNext := true
	for _, r := range s {
		if r == '/' || r == '-' || r == '_' || r == ' ' || r == '{' || r == '}' {
			capitalizeNext = true
			continue
		}
		if capitalizeNext && r >= 'a' && r <= 'z' {
			result.WriteRune(r - 32)
		} else {
			result.WriteRune(r)
		}
		capitalizeNext = false
	}
	return result.String()
}
