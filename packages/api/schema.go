package api

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/postbox/packages/core/errdef"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/*.json
var schemas embed.FS

var (
	requestSchema     = sync.OnceValues(func() (*gojsonschema.Schema, error) { return loadSchema("request") })
	environmentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) { return loadSchema("environment") })
)

func loadSchema(name string) (*gojsonschema.Schema, error) {
	data, err := schemas.ReadFile("schema/" + name + ".schema.json")
	if err != nil {
		return nil, fmt.Errorf("reading %s schema: %w", name, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", name, err)
	}
	return schema, nil
}

// checkPayload validates a raw JSON document against schema before it is
// decoded. Violations are reported together as one ValidationError.
func checkPayload(load func() (*gojsonschema.Schema, error), raw []byte) error {
	schema, err := load()
	if err != nil {
		return errdef.Wrap(errdef.KindInternal, err, "load schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return errdef.Wrap(errdef.KindValidation, err, "invalid JSON payload")
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return errdef.New(errdef.KindValidation, "payload does not match schema: %s", strings.Join(problems, "; "))
}
