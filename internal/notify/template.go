package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TemplateData holds all data available to notification templates.
type TemplateData struct {
	Globals map[string]any
	Run     map[string]string
	Alert   map[string]string
}

// BuildTemplateData constructs template data. Nil maps become empty so
// templates can always index them.
func BuildTemplateData(globals map[string]any, run, alert map[string]string) TemplateData {
	if globals == nil {
		globals = map[string]any{}
	}
	runCopy := make(map[string]string, len(run)+1)
	for k, v := range run {
		runCopy[k] = v
	}
	if _, ok := runCopy["state"]; ok {
		runCopy["state_emoji"] = stateEmoji(runCopy["state"])
	}
	alertCopy := make(map[string]string, len(alert))
	for k, v := range alert {
		alertCopy[k] = v
	}
	return TemplateData{Globals: globals, Run: runCopy, Alert: alertCopy}
}

func stateEmoji(state string) string {
	switch state {
	case "failed":
		return "\U0001f534" // 🔴
	case "committed":
		return "\U0001f7e2" // 🟢
	case "noop_clean":
		return "⚪" // ⚪
	default:
		return "❓" // ❓
	}
}

// Render executes a Go text/template string with Sprig functions and the
// accessor functions run, alert and globals, so {{run.error}} works.
func Render(tmplStr string, data TemplateData) (string, error) {
	funcMap := sprig.TxtFuncMap()
	funcMap["run"] = func() map[string]string { return data.Run }
	funcMap["alert"] = func() map[string]string { return data.Alert }
	funcMap["globals"] = func() map[string]any { return data.Globals }

	t, err := template.New("notify").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
