package automation

import (
	"testing"
	"time"
)

func TestDelayDuration(t *testing.T) {
	tests := []struct {
		name  string
		delay Delay
		want  time.Duration
	}{
		{"zero", Delay{}, 0},
		{"days only", Delay{Days: 2}, 48 * time.Hour},
		{"hours only", Delay{Hours: 3}, 3 * time.Hour},
		{"minutes only", Delay{Minutes: 45}, 45 * time.Minute},
		{"combined", Delay{Days: 1, Hours: 2, Minutes: 30}, 26*time.Hour + 30*time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.delay.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func validTemplate() *Template {
	return &Template{
		Name:    "welcome",
		Trigger: Trigger{Type: TriggerNewLead},
		Steps: []Step{
			{Index: 0, Action: ActionSendWhatsApp, Content: map[string]interface{}{"message": "hi"}},
			{Index: 1, Delay: Delay{Days: 1}, Action: ActionCreateTask},
		},
	}
}

func TestTemplateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Template)
		wantErr bool
	}{
		{"valid", func(t *Template) {}, false},
		{"missing name", func(t *Template) { t.Name = "" }, true},
		{"unknown trigger", func(t *Template) { t.Trigger.Type = "on_full_moon" }, true},
		{"no steps", func(t *Template) { t.Steps = nil }, true},
		{"indices not contiguous", func(t *Template) { t.Steps[1].Index = 5 }, true},
		{"indices not starting at zero", func(t *Template) {
			t.Steps[0].Index = 1
			t.Steps[1].Index = 2
		}, true},
		{"empty action", func(t *Template) { t.Steps[1].Action = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := validTemplate()
			tt.mutate(tmpl)
			err := tmpl.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstanceDue(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		inst Instance
		want bool
	}{
		{"active and past due", Instance{Status: StatusActive, NextActionAt: now.Add(-time.Minute)}, true},
		{"active exactly now", Instance{Status: StatusActive, NextActionAt: now}, true},
		{"active but future", Instance{Status: StatusActive, NextActionAt: now.Add(time.Hour)}, false},
		{"stopped never due", Instance{Status: StatusStopped, NextActionAt: now.Add(-time.Hour)}, false},
		{"completed never due", Instance{Status: StatusCompleted, NextActionAt: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inst.Due(now); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}
