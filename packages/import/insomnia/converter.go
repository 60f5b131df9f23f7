// Package insomnia converts Insomnia v4 exports into request definitions and
// environment sets.
package insomnia

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
	"github.com/tidwall/gjson"
)

// Converter converts Insomnia exports.
type Converter struct {
	includeEnvironments bool
	folderSeparator     string
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithEnvironments configures whether environment resources are converted.
func WithEnvironments(include bool) Option {
	return func(c *Converter) {
		c.includeEnvironments = include
	}
}

// WithFolderSeparator sets the separator placed between folder names and
// the request name.
func WithFolderSeparator(sep string) Option {
	return func(c *Converter) {
		c.folderSeparator = sep
	}
}

// NewConverter creates a new Insomnia converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		includeEnvironments: true,
		folderSeparator:     " / ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export represents an Insomnia export file.
type Export struct {
	Type         string     `json:"_type"`
	ExportFormat int        `json:"__export_format"`
	Resources    []Resource `json:"resources"`
}

// Resource represents an Insomnia resource (request, folder, environment, etc).
type Resource struct {
	ID             string          `json:"_id"`
	Type           string          `json:"_type"`
	ParentID       string          `json:"parentId"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Method         string          `json:"method,omitempty"`
	URL            string          `json:"url,omitempty"`
	Headers        []Header        `json:"headers,omitempty"`
	Body           *Body           `json:"body,omitempty"`
	Parameters     []Parameter     `json:"parameters,omitempty"`
	Authentication *Auth           `json:"authentication,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Header represents an Insomnia header.
type Header struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Body represents an Insomnia request body.
type Body struct {
	MimeType string      `json:"mimeType,omitempty"`
	Text     string      `json:"text,omitempty"`
	Params   []Parameter `json:"params,omitempty"`
}

// Parameter represents an Insomnia query or form parameter.
type Parameter struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Auth represents Insomnia authentication.
type Auth struct {
	Type     string `json:"type"`
	Disabled bool   `json:"disabled,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// Result is everything converted from one export.
type Result struct {
	// Name is the workspace name, suitable for a collection.
	Name         string
	Requests     []model.Definition
	Environments []model.EnvironmentSet
	// Warnings lists parts of the export that were dropped.
	Warnings []string
}

// ConvertFile converts an Insomnia export file.
func (c *Converter) ConvertFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return c.Convert(data)
}

// Convert converts Insomnia export JSON. Every produced definition passes
// request validation; the first invalid one fails the whole export.
func (c *Converter) Convert(data []byte) (*Result, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, errdef.Wrap(errdef.KindValidation, err, "parse Insomnia export")
	}
	if export.Type != "" && export.Type != "export" {
		return nil, errdef.New(errdef.KindValidation, "unsupported Insomnia resource type %q", export.Type)
	}

	result := &Result{}
	folders := make(map[string]Resource)
	for _, res := range export.Resources {
		switch res.Type {
		case "workspace":
			if result.Name == "" {
				result.Name = res.Name
			}
		case "request_group":
			folders[res.ID] = res
		}
	}

	for _, res := range export.Resources {
		switch res.Type {
		case "request":
			def, warnings := c.convertRequest(res, folders)
			if err := request.Validate(&def); err != nil {
				return nil, fmt.Errorf("request %q: %w", def.Name, err)
			}
			result.Requests = append(result.Requests, def)
			result.Warnings = append(result.Warnings, warnings...)
		case "environment":
			if !c.includeEnvironments {
				continue
			}
			set, err := convertEnvironment(res)
			if err != nil {
				return nil, err
			}
			result.Environments = append(result.Environments, set)
		}
	}
	return result, nil
}

func (c *Converter) convertRequest(res Resource, folders map[string]Resource) (model.Definition, []string) {
	var warnings []string

	name := res.Name
	if path := c.getFolderPath(res.ParentID, folders); path != "" {
		name = path + c.folderSeparator + name
	}

	method := strings.ToUpper(res.Method)
	if method == "" {
		method = "GET"
	}

	def := model.Definition{
		Name:   name,
		Method: model.Method(method),
		URL:    withQuery(convertVariable(res.URL), res.Parameters),
	}
	if res.Description != "" {
		desc := res.Description
		def.Description = &desc
	}

	for _, h := range res.Headers {
		if h.Disabled {
			continue
		}
		def.Headers = append(def.Headers, model.Header{Key: h.Name, Value: convertVariable(h.Value)})
	}

	if res.Authentication != nil && !res.Authentication.Disabled {
		header, ok := authHeader(res.Authentication)
		switch auth := res.Authentication; {
		case ok:
			def.Headers = append(def.Headers, header)
		case auth.Type == "basic" && templatedBasic(auth):
			warnings = append(warnings, fmt.Sprintf("%s: templated basic credentials are not supported", name))
		case auth.Type != "" && auth.Type != "none" && auth.Type != "basic" && auth.Type != "bearer":
			warnings = append(warnings, fmt.Sprintf("%s: %s authentication is not supported", name, auth.Type))
		}
	}

	if res.Body != nil {
		c.applyBody(&def, res.Body)
	}
	return def, warnings
}

func (c *Converter) applyBody(def *model.Definition, body *Body) {
	mime, _, _ := strings.Cut(body.MimeType, ";")
	switch strings.TrimSpace(mime) {
	case "application/x-www-form-urlencoded":
		pairs := make([]string, 0, len(body.Params))
		for _, p := range enabled(body.Params) {
			pairs = append(pairs, p.Name+"="+convertVariable(p.Value))
		}
		text := strings.Join(pairs, "&")
		def.Body = &text
		def.BodyType = model.BodyURLEncoded
	case "multipart/form-data":
		fields := make([]string, 0, len(body.Params))
		for _, p := range enabled(body.Params) {
			key, _ := json.Marshal(p.Name)
			val, _ := json.Marshal(convertVariable(p.Value))
			fields = append(fields, string(key)+":"+string(val))
		}
		text := "{" + strings.Join(fields, ",") + "}"
		def.Body = &text
		def.BodyType = model.BodyFormData
	default:
		if body.Text == "" {
			return
		}
		text := convertVariable(body.Text)
		def.Body = &text
		def.BodyType = model.BodyRaw
		if body.MimeType != "" {
			if _, ok := def.Header("Content-Type"); !ok {
				def.Headers = append(def.Headers, model.Header{Key: "Content-Type", Value: body.MimeType})
			}
		}
	}
}

func authHeader(auth *Auth) (model.Header, bool) {
	switch auth.Type {
	case "basic":
		if auth.Username == "" {
			return model.Header{}, false
		}
		// Encoding would hide placeholders from the resolver.
		if templatedBasic(auth) {
			return model.Header{}, false
		}
		creds := convertVariable(auth.Username) + ":" + convertVariable(auth.Password)
		return model.Header{Key: "Authorization", Value: "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))}, true
	case "bearer":
		if auth.Token == "" {
			return model.Header{}, false
		}
		prefix := auth.Prefix
		if prefix == "" {
			prefix = "Bearer"
		}
		return model.Header{Key: "Authorization", Value: prefix + " " + convertVariable(auth.Token)}, true
	}
	return model.Header{}, false
}

func templatedBasic(auth *Auth) bool {
	creds := convertVariable(auth.Username) + ":" + convertVariable(auth.Password)
	return placeholderPattern.MatchString(creds)
}

// convertEnvironment flattens the environment data into variables, nested
// objects joined with dots, in document order.
func convertEnvironment(res Resource) (model.EnvironmentSet, error) {
	set := model.EnvironmentSet{Name: res.Name, Variables: []model.Variable{}}
	if len(res.Data) == 0 {
		return set, nil
	}
	data := gjson.ParseBytes(res.Data)
	if !data.IsObject() {
		return set, errdef.New(errdef.KindValidation, "environment %q: data must be an object", res.Name)
	}
	flatten("", data, &set.Variables)
	return set, nil
}

func flatten(prefix string, value gjson.Result, out *[]model.Variable) {
	value.ForEach(func(key, item gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		switch {
		case item.IsObject():
			flatten(name, item, out)
		case item.Type == gjson.String:
			*out = append(*out, model.Variable{Key: name, Value: convertVariable(item.String())})
		case item.Type == gjson.Null:
			*out = append(*out, model.Variable{Key: name})
		default:
			*out = append(*out, model.Variable{Key: name, Value: item.Raw})
		}
		return true
	})
}

func (c *Converter) getFolderPath(parentID string, folders map[string]Resource) string {
	var path []string
	currentID := parentID

	for {
		folder, exists := folders[currentID]
		if !exists {
			break
		}
		path = append([]string{folder.Name}, path...)
		currentID = folder.ParentID
	}

	return strings.Join(path, c.folderSeparator)
}

func enabled(params []Parameter) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if !p.Disabled {
			out = append(out, p)
		}
	}
	return out
}

// withQuery appends enabled parameters to the URL verbatim so placeholders
// in them survive until resolution.
func withQuery(rawURL string, params []Parameter) string {
	params = enabled(params)
	if len(params) == 0 {
		return rawURL
	}
	pairs := make([]string, len(params))
	for i, p := range params {
		pairs[i] = p.Name + "=" + convertVariable(p.Value)
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + strings.Join(pairs, "&")
}

var (
	insomniaVarPattern = regexp.MustCompile(`\{\{\s*_\.([A-Za-z_][\w.\-]*)\s*\}\}`)
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.\-]*)\s*\}\}`)
)

// convertVariable rewrites {{ _.name }} and {{ name }} into {{name}}.
func convertVariable(s string) string {
	s = insomniaVarPattern.ReplaceAllString(s, "{{$1}}")
	return placeholderPattern.ReplaceAllString(s, "{{$1}}")
}
