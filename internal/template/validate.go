// Package template is the template-validation collaborator. Sub-prompt files
// carry Jinja2 syntax (.j2); validation parses each candidate with pongo2 and
// reports syntax errors. Nothing is ever rendered.
package template

import (
	"fmt"

	"github.com/flosch/pongo2/v6"
)

// Validate parses contents as a Jinja2-syntax template and returns the first
// syntax error, if any.
func Validate(contents string) error {
	if _, err := pongo2.FromString(contents); err != nil {
		return fmt.Errorf("template syntax: %w", err)
	}
	return nil
}
