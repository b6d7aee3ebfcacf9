package mailing

import (
	"strings"
	"testing"
)

func TestRender_Basic(t *testing.T) {
	ts := NewTemplateService()

	out, err := ts.Render("", "Hello {{ name }}", map[string]interface{}{"name": "Dana"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != "Hello Dana" {
		t.Errorf("got %q, want Hello Dana", out)
	}
}

func TestRender_Filters(t *testing.T) {
	ts := NewTemplateService()
	tests := []struct {
		name string
		tpl  string
		ctx  map[string]interface{}
		want string
	}{
		{"default with missing value", `{{ first_name | default: "חבר" }}`, map[string]interface{}{}, "חבר"},
		{"default with empty string", `{{ first_name | default: "חבר" }}`, map[string]interface{}{"first_name": ""}, "חבר"},
		{"default passthrough", `{{ first_name | default: "חבר" }}`, map[string]interface{}{"first_name": "Dana"}, "Dana"},
		{"capitalize", `{{ name | capitalize }}`, map[string]interface{}{"name": "dANA"}, "Dana"},
		{"truncate long", `{{ note | truncate: 10 }}`, map[string]interface{}{"note": "a very long note indeed"}, "a very ..."},
		{"truncate short untouched", `{{ note | truncate: 50 }}`, map[string]interface{}{"note": "short"}, "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ts.Render("", tt.tpl, tt.ctx)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if out != tt.want {
				t.Errorf("got %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRender_BadTemplateDegradesToRawText(t *testing.T) {
	ts := NewTemplateService()
	raw := "Hello {{ name "

	out, err := ts.Render("", raw, map[string]interface{}{"name": "Dana"})
	if err == nil {
		t.Error("expected a parse error")
	}
	if out != raw {
		t.Errorf("bad template must return the raw text, got %q", out)
	}
}

func TestRender_CacheReuse(t *testing.T) {
	ts := NewTemplateService()

	out, err := ts.Render("k1", "Hi {{ name }}", map[string]interface{}{"name": "A"})
	if err != nil || out != "Hi A" {
		t.Fatalf("first render: %q, %v", out, err)
	}

	// Same key, different template string: the cached program wins, which is
	// the contract callers rely on for stable step content.
	out, err = ts.Render("k1", "Bye {{ name }}", map[string]interface{}{"name": "B"})
	if err != nil {
		t.Fatalf("cached render: %v", err)
	}
	if !strings.HasPrefix(out, "Hi") {
		t.Errorf("cache not used, got %q", out)
	}

	ts.ClearCache()
	out, _ = ts.Render("k1", "Bye {{ name }}", map[string]interface{}{"name": "B"})
	if out != "Bye B" {
		t.Errorf("cache not cleared, got %q", out)
	}
}

func TestParse(t *testing.T) {
	ts := NewTemplateService()
	if err := ts.Parse("{{ ok }}"); err != nil {
		t.Errorf("valid template rejected: %v", err)
	}
	if err := ts.Parse("{% if %}"); err == nil {
		t.Error("invalid template accepted")
	}
}
