package template

import "testing"

func TestValidateAcceptsWellFormedTemplates(t *testing.T) {
	valid := []string{
		"plain text, no template syntax",
		"Hello {{ name }}!",
		"{% if enabled %}on{% else %}off{% endif %}",
		"{% for item in items %}{{ item }}{% endfor %}",
		"{# a comment #}body",
	}
	for _, contents := range valid {
		if err := Validate(contents); err != nil {
			t.Fatalf("validate %q: %v", contents, err)
		}
	}
}

func TestValidateRejectsBrokenTemplates(t *testing.T) {
	invalid := []string{
		"{{ name",
		"{% if enabled %}no endif",
		"{% endfor %}",
	}
	for _, contents := range invalid {
		if err := Validate(contents); err == nil {
			t.Fatalf("validate %q: expected syntax error", contents)
		}
	}
}
