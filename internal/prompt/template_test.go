package prompt

import (
	"errors"
	"reflect"
	"testing"
)

func TestNew_Variables(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected []string
	}{
		{"no variables", "Plain text", []string{}},
		{"single", "Title about {topic}", []string{"topic"}},
		{"sorted and unique", "{b} {a} {b}", []string{"a", "b"}},
		{"escaped braces", "{{not}} {real}", []string{"real"}},
		{"trimmed name", "{ topic }", []string{"topic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := New(tt.template)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := tmpl.Variables(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNew_ParseErrors(t *testing.T) {
	for _, text := range []string{"{unclosed", "closing }", "{}", "{a{b}}"} {
		if _, err := New(text); !errors.Is(err, ErrTemplateParse) {
			t.Errorf("%q: expected ErrTemplateParse, got %v", text, err)
		}
	}
}

func TestRender(t *testing.T) {
	tmpl := MustNew("Title about {topic}, {{literal}}")

	got, err := tmpl.Render(map[string]string{"topic": "loss", "extra": "ignored"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Title about loss, {literal}" {
		t.Errorf("unexpected render: %q", got)
	}
}

func TestRender_MissingVariable(t *testing.T) {
	tmpl := MustNew("{greeting}, {name}!")

	_, err := tmpl.Render(map[string]string{"greeting": "Hi"})
	if !errors.Is(err, ErrMissingVariable) {
		t.Fatalf("expected ErrMissingVariable, got %v", err)
	}
	if err.Error() != "prompt variable not provided: name" {
		t.Errorf("error should name the missing variable, got %q", err.Error())
	}
}

func TestHas(t *testing.T) {
	tmpl := MustNew("{question} in {language}")

	if !tmpl.Has("question") || !tmpl.Has("language") {
		t.Error("template should report its variables")
	}
	if tmpl.Has("answer") {
		t.Error("answer is not a variable")
	}
}

func TestMustNew_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustNew should panic on invalid template")
		}
	}()
	MustNew("{broken")
}
