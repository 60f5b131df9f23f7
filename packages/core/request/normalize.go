package request

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/tidwall/gjson"
)

const (
	contentTypeHeader = "Content-Type"
	formURLEncoded    = "application/x-www-form-urlencoded"
	octetStream       = "application/octet-stream"
)

// Executable is a validated, fully resolved request ready for dispatch.
type Executable struct {
	Method  string
	URL     string
	Headers []model.Header
	Body    []byte
}

// Header returns the last value of key, compared case-insensitively.
func (e *Executable) Header(key string) string {
	value := ""
	for _, h := range e.Headers {
		if strings.EqualFold(h.Key, key) {
			value = h.Value
		}
	}
	return value
}

// Normalize converts a resolved definition into an Executable. It fails with
// a ValidationError when the URL is not an absolute http(s) URL and with a
// MalformedBodyError when the body cannot be interpreted per its body type.
func Normalize(def *model.Definition) (*Executable, error) {
	if err := Validate(def); err != nil {
		return nil, err
	}
	if err := ValidateURL(def.URL); err != nil {
		return nil, err
	}

	exec := &Executable{
		Method:  string(def.Method),
		URL:     def.URL,
		Headers: make([]model.Header, len(def.Headers)),
	}
	copy(exec.Headers, def.Headers)

	if def.Body == nil {
		return exec, nil
	}
	body := *def.Body

	switch def.BodyType {
	case model.BodyRaw, "":
		if isJSONContentType(exec.Header(contentTypeHeader)) && !gjson.Valid(body) {
			return nil, errdef.New(errdef.KindMalformedBody, "body is not valid JSON but Content-Type declares JSON")
		}
		exec.Body = []byte(body)

	case model.BodyURLEncoded:
		if _, err := url.ParseQuery(body); err != nil {
			return nil, errdef.Wrap(errdef.KindMalformedBody, err, "parse form body")
		}
		exec.Body = []byte(body)
		exec.defaultHeader(contentTypeHeader, formURLEncoded)

	case model.BodyFormData:
		payload, contentType, err := BuildMultipartBody(body)
		if err != nil {
			return nil, err
		}
		exec.Body = payload
		exec.setHeader(contentTypeHeader, contentType)

	case model.BodyBinary:
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(body))
		if err != nil {
			return nil, errdef.Wrap(errdef.KindMalformedBody, err, "decode base64 body")
		}
		exec.Body = decoded
		exec.defaultHeader(contentTypeHeader, octetStream)
	}

	return exec, nil
}

func (e *Executable) defaultHeader(key, value string) {
	if e.Header(key) != "" {
		return
	}
	e.Headers = append(e.Headers, model.Header{Key: key, Value: value})
}

// setHeader replaces every existing value of key.
func (e *Executable) setHeader(key, value string) {
	kept := e.Headers[:0]
	for _, h := range e.Headers {
		if !strings.EqualFold(h.Key, key) {
			kept = append(kept, h)
		}
	}
	e.Headers = append(kept, model.Header{Key: key, Value: value})
}

// ValidateURL checks that a URL is absolute, well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "invalid URL")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return errdef.New(errdef.KindValidation, "unsupported URL scheme %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return errdef.New(errdef.KindValidation, "URL must have a host")
	}

	return nil
}

func isJSONContentType(value string) bool {
	if value == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(value, ";")[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// BuildMultipartBody encodes a JSON object of scalar fields as
// multipart/form-data, keeping the field order of the document.
func BuildMultipartBody(body string) ([]byte, string, error) {
	if !gjson.Valid(body) {
		return nil, "", errdef.New(errdef.KindMalformedBody, "form-data body must be a JSON object")
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, "", errdef.New(errdef.KindMalformedBody, "form-data body must be a JSON object")
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	var fieldErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String, gjson.Number, gjson.True, gjson.False:
		default:
			fieldErr = errdef.New(errdef.KindMalformedBody, "form-data field %q must be a string, number or boolean", key.String())
			return false
		}
		if err := writer.WriteField(key.String(), value.String()); err != nil {
			fieldErr = fmt.Errorf("write form field %q: %w", key.String(), err)
			return false
		}
		return true
	})
	if fieldErr != nil {
		return nil, "", fieldErr
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}
