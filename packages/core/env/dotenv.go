package env

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/joho/godotenv"
)

var dotenvKeyPattern = regexp.MustCompile(`(?m)^\s*(?:export\s+)?([A-Za-z_][A-Za-z0-9_.]*)\s*[=:]`)

// LoadDotEnv parses a .env file into a variable list ordered by first
// appearance. A repeated key keeps its first position and its last value.
func LoadDotEnv(path string) ([]model.Variable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	return ParseDotEnv(file)
}

// ParseDotEnv reads dotenv syntax. Values follow godotenv rules, so quotes
// are stripped and $VAR references are expanded.
func ParseDotEnv(r io.Reader) ([]model.Variable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	values, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing env file: %w", err)
	}

	result := make([]model.Variable, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, m := range dotenvKeyPattern.FindAllSubmatch(data, -1) {
		key := string(m[1])
		value, ok := values[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, model.Variable{Key: key, Value: value})
	}

	// keys the pattern missed, e.g. unusual spacing godotenv still accepts
	var rest []string
	for key := range values {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		result = append(result, model.Variable{Key: key, Value: values[key]})
	}
	return result, nil
}
