package notify

import (
	"testing"
)

func failedRun() map[string]string {
	return map[string]string{
		"id":      "r-1",
		"trigger": "timer",
		"state":   "failed",
		"stage":   "executing",
		"error":   "script exited with code 1",
	}
}

func TestRender_Basic(t *testing.T) {
	data := BuildTemplateData(map[string]any{"hostname": "runner-01"}, failedRun(), nil)

	result, err := Render(`{{run.state | upper}} {{globals.hostname}}: {{run.stage}}`, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "FAILED runner-01: executing" {
		t.Errorf("result = %q, want %q", result, "FAILED runner-01: executing")
	}
}

func TestRender_StateEmoji(t *testing.T) {
	tests := []struct {
		state string
		emoji string
	}{
		{"failed", "\U0001f534"},
		{"committed", "\U0001f7e2"},
		{"noop_clean", "⚪"},
		{"weird", "❓"},
	}
	for _, tt := range tests {
		data := BuildTemplateData(nil, map[string]string{"state": tt.state}, nil)
		result, err := Render(`{{run.state_emoji}}`, data)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.state, err)
		}
		if result != tt.emoji {
			t.Errorf("state=%s: emoji = %q, want %q", tt.state, result, tt.emoji)
		}
	}
}

func TestRender_AlertAccess(t *testing.T) {
	data := BuildTemplateData(nil, nil, map[string]string{"time": "2024-05-01 10:00:00"})

	result, err := Render("*Hora:* `{{alert.time}}`", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "*Hora:* `2024-05-01 10:00:00`" {
		t.Errorf("result = %q", result)
	}
}

func TestRender_SprigFunctions(t *testing.T) {
	data := BuildTemplateData(nil, map[string]string{"stage": "push"}, nil)

	result, err := Render(`{{run.stage | upper | repeat 2}}`, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "PUSHPUSH" {
		t.Errorf("result = %q, want %q", result, "PUSHPUSH")
	}
}

func TestRender_DefaultSprigFunc(t *testing.T) {
	data := BuildTemplateData(nil, failedRun(), nil)

	result, err := Render(`{{run.commit | default "none"}}`, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "none" {
		t.Errorf("result = %q, want %q", result, "none")
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	data := BuildTemplateData(nil, failedRun(), nil)

	if _, err := Render(`{{run.state | nonexistent}}`, data); err == nil {
		t.Fatal("expected error for invalid template function")
	}
}

func TestBuildTemplateData_NilMaps(t *testing.T) {
	data := BuildTemplateData(nil, nil, nil)
	if data.Globals == nil || data.Run == nil || data.Alert == nil {
		t.Error("maps should be non-nil")
	}
	if _, ok := data.Run["state_emoji"]; ok {
		t.Error("state_emoji should only be derived when state is set")
	}
}
