// Package curl converts curl command lines into request definitions.
package curl

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/abdul-hamid-achik/postbox/packages/core/request"
)

// Converter converts curl commands to request definitions.
type Converter struct {
	namePrefix string
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithNamePrefix prepends prefix to every generated request name.
func WithNamePrefix(prefix string) Option {
	return func(c *Converter) {
		c.namePrefix = prefix
	}
}

// NewConverter creates a new curl converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FormField is one -F name=value pair.
type FormField struct {
	Name  string
	Value string
}

// ParsedCurl represents a parsed curl command.
type ParsedCurl struct {
	Method          string
	URL             string
	Headers         []model.Header
	Body            string
	BodyType        model.BodyType
	Form            []FormField
	BasicAuth       string
	Insecure        bool
	FollowRedirects bool
	Name            string
}

// ConvertCommand converts a single curl command to a validated definition.
func (c *Converter) ConvertCommand(curlCmd string) (model.Definition, error) {
	parsed, err := c.Parse(curlCmd)
	if err != nil {
		return model.Definition{}, err
	}
	def, err := c.ToDefinition(parsed)
	if err != nil {
		return model.Definition{}, err
	}
	if err := request.Validate(&def); err != nil {
		return model.Definition{}, err
	}
	return def, nil
}

// ConvertFile converts a file containing curl commands, one per line or
// continued with a trailing backslash.
func (c *Converter) ConvertFile(path string) ([]model.Definition, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var commands []string
	var currentCmd strings.Builder
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Handle line continuations
		if strings.HasSuffix(line, "\\") {
			currentCmd.WriteString(strings.TrimSuffix(line, "\\"))
			currentCmd.WriteString(" ")
			continue
		}

		currentCmd.WriteString(line)
		commands = append(commands, currentCmd.String())
		currentCmd.Reset()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Handle any remaining command
	if currentCmd.Len() > 0 {
		commands = append(commands, currentCmd.String())
	}

	defs := make([]model.Definition, 0, len(commands))
	for i, cmd := range commands {
		def, err := c.ConvertCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to convert command %d: %w", i+1, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Parse parses a curl command string into a ParsedCurl struct.
func (c *Converter) Parse(curlCmd string) (*ParsedCurl, error) {
	parsed := &ParsedCurl{
		Method: "GET",
	}
	explicitMethod := false

	// Normalize the command
	curlCmd = strings.TrimSpace(curlCmd)

	// Remove "curl" prefix if present
	if strings.HasPrefix(curlCmd, "curl ") {
		curlCmd = strings.TrimPrefix(curlCmd, "curl ")
	} else if curlCmd == "curl" {
		return nil, fmt.Errorf("no URL specified")
	}

	// Tokenize the command respecting quotes
	tokens := tokenize(curlCmd)

	value := func(i int) (string, error) {
		if i+1 < len(tokens) {
			return tokens[i+1], nil
		}
		return "", fmt.Errorf("missing value for %s", tokens[i])
	}
	setBody := func(body string, bodyType model.BodyType) {
		parsed.Body = body
		parsed.BodyType = bodyType
		// If body is set, default method to POST
		if !explicitMethod {
			parsed.Method = "POST"
		}
	}

	i := 0
	for i < len(tokens) {
		token := tokens[i]

		switch {
		case token == "-X" || token == "--request":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Method = strings.ToUpper(v)
			explicitMethod = true
			i += 2

		case token == "-I" || token == "--head":
			parsed.Method = "HEAD"
			explicitMethod = true
			i++

		case token == "-H" || token == "--header":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if key, val, ok := strings.Cut(v, ":"); ok {
				parsed.Headers = append(parsed.Headers, model.Header{Key: strings.TrimSpace(key), Value: strings.TrimSpace(val)})
			}
			i += 2

		case token == "-d" || token == "--data" || token == "--data-raw" || token == "--data-binary":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			setBody(v, model.BodyRaw)
			i += 2

		case token == "--data-urlencode":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if parsed.BodyType == model.BodyURLEncoded && parsed.Body != "" {
				v = parsed.Body + "&" + v
			}
			setBody(v, model.BodyURLEncoded)
			i += 2

		case token == "-F" || token == "--form":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			name, val, ok := strings.Cut(v, "=")
			if !ok {
				return nil, fmt.Errorf("invalid form field %q, expected name=value", v)
			}
			parsed.Form = append(parsed.Form, FormField{Name: name, Value: val})
			parsed.BodyType = model.BodyFormData
			if !explicitMethod {
				parsed.Method = "POST"
			}
			i += 2

		case token == "-u" || token == "--user":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.BasicAuth = v
			i += 2

		case token == "-k" || token == "--insecure":
			parsed.Insecure = true
			i++

		case token == "-L" || token == "--location":
			parsed.FollowRedirects = true
			i++

		case token == "-A" || token == "--user-agent":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers = append(parsed.Headers, model.Header{Key: "User-Agent", Value: v})
			i += 2

		case token == "-e" || token == "--referer":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers = append(parsed.Headers, model.Header{Key: "Referer", Value: v})
			i += 2

		case token == "-b" || token == "--cookie":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers = append(parsed.Headers, model.Header{Key: "Cookie", Value: v})
			i += 2

		case token == "--url":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.URL = v
			i += 2

		case strings.HasPrefix(token, "-"):
			// Skip unknown flags with potential values
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
				i += 2
			} else {
				i++
			}

		default:
			// This should be the URL
			if parsed.URL == "" && isURL(token) {
				parsed.URL = token
			}
			i++
		}
	}

	if parsed.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	// Generate a name from the URL
	parsed.Name = c.namePrefix + generateName(parsed.URL, parsed.Method)

	return parsed, nil
}

// ToDefinition converts a ParsedCurl to a request definition. Basic auth
// credentials become an Authorization header and -F fields a form-data body.
func (c *Converter) ToDefinition(parsed *ParsedCurl) (model.Definition, error) {
	def := model.Definition{
		Name:   parsed.Name,
		Method: model.Method(parsed.Method),
		URL:    parsed.URL,
	}
	if len(parsed.Headers) > 0 {
		def.Headers = append([]model.Header(nil), parsed.Headers...)
	}

	if parsed.BasicAuth != "" {
		encoded := base64.StdEncoding.EncodeToString([]byte(parsed.BasicAuth))
		def.Headers = append(def.Headers, model.Header{Key: "Authorization", Value: "Basic " + encoded})
	}

	switch {
	case len(parsed.Form) > 0:
		body, err := formBody(parsed.Form)
		if err != nil {
			return model.Definition{}, err
		}
		def.Body = &body
		def.BodyType = model.BodyFormData
	case parsed.Body != "":
		body := parsed.Body
		def.Body = &body
		def.BodyType = parsed.BodyType
	}
	return def, nil
}

// formBody encodes fields as a JSON object, keeping their order.
func formBody(fields []FormField) (string, error) {
	var sb strings.Builder
	sb.WriteString("{")
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(",")
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return "", err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return "", err
		}
		sb.Write(key)
		sb.WriteString(":")
		sb.Write(val)
	}
	sb.WriteString("}")
	return sb.String(), nil
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

// isURL checks if a string looks like a URL.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "{{")
}

var urlPattern = regexp.MustCompile(`https?://[^/]+(/[^?#]*)?`)

// generateName generates a request name from the URL and method.
func generateName(url, method string) string {
	// Extract the path from the URL
	matches := urlPattern.FindStringSubmatch(url)

	path := "/"
	if len(matches) > 1 && matches[1] != "" {
		path = matches[1]
	}

	// Clean up the path for a name
	path = strings.Trim(path, "/")
	if path == "" {
		path = "root"
	}

	// Replace path separators and other characters
	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "-", "_")

	return strings.ToLower(method) + "_" + path
}
