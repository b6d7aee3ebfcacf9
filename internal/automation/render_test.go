package automation

import (
	"testing"

	"github.com/luminix/crm/internal/crm"
)

func TestRenderPlaceholders(t *testing.T) {
	lead := &crm.Lead{
		FullName:     "Dana Cohen",
		FirstName:    "Dana",
		BusinessName: "Cohen Consulting",
		Email:        "dana@example.com",
		Phone:        "+972501234567",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"name token", "שלום {name}!", "שלום Dana Cohen!"},
		{"first name token", "היי {firstName}", "היי Dana"},
		{"business token", "{business} team", "Cohen Consulting team"},
		{"multiple tokens", "{firstName} <{email}> {phone}", "Dana <dana@example.com> +972501234567"},
		{"no tokens untouched", "plain text", "plain text"},
		{"unknown token untouched", "{nope}", "{nope}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderPlaceholders(tt.in, lead); got != tt.want {
				t.Errorf("RenderPlaceholders(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderPlaceholders_Fallbacks(t *testing.T) {
	t.Run("missing first name uses first word of full name", func(t *testing.T) {
		lead := &crm.Lead{FullName: "Yossi Levi"}
		if got := RenderPlaceholders("{firstName}", lead); got != "Yossi" {
			t.Errorf("got %q, want Yossi", got)
		}
	})

	t.Run("nameless lead gets neutral greeting", func(t *testing.T) {
		lead := &crm.Lead{}
		if got := RenderPlaceholders("{name}", lead); got != DefaultRecipientName {
			t.Errorf("got %q, want %q", got, DefaultRecipientName)
		}
		if got := RenderPlaceholders("{firstName}", lead); got != DefaultRecipientName {
			t.Errorf("got %q, want %q", got, DefaultRecipientName)
		}
	})

	t.Run("missing business renders empty", func(t *testing.T) {
		lead := &crm.Lead{FullName: "Dana"}
		if got := RenderPlaceholders("x{business}x", lead); got != "xx" {
			t.Errorf("got %q, want xx", got)
		}
	})
}
