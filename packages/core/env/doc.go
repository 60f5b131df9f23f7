// Package env handles environment sets and variable resolution for postbox.
//
// It provides functionality for:
//   - Variable interpolation using {{variable}} syntax
//   - Loading environment sets from .env and YAML files
//   - Merging variable lists with last-definition-wins semantics
package env
