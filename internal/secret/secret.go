// Package secret holds the credentials forwarded to the script for one run.
package secret

import (
	"bytes"
	"os"
	"sort"
	"strings"
)

const mask = "[REDACTED]"

// Set maps environment variable names to secret values. Values are forwarded
// to the script unchanged.
type Set map[string]string

// Names returns the secret names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Env returns NAME=value pairs for every secret, sorted by name.
func (s Set) Env() []string {
	env := make([]string, 0, len(s))
	for _, k := range s.Names() {
		env = append(env, k+"="+s[k])
	}
	return env
}

// Missing returns the names whose value is empty.
func (s Set) Missing() []string {
	var missing []string
	for _, k := range s.Names() {
		if s[k] == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// Redact replaces every non-empty secret value in text with a fixed mask.
// Longer values are replaced first so a value containing another is fully
// masked.
func (s Set) Redact(text string) string {
	if text == "" {
		return text
	}
	for _, v := range s.byLength() {
		text = strings.ReplaceAll(text, v, mask)
	}
	return text
}

// Leaks returns the names of secrets whose value occurs verbatim in data.
func (s Set) Leaks(data []byte) []string {
	var leaked []string
	for _, k := range s.Names() {
		v := s[k]
		if v == "" {
			continue
		}
		if bytes.Contains(data, []byte(v)) {
			leaked = append(leaked, k)
		}
	}
	return leaked
}

func (s Set) byLength() []string {
	vals := make([]string, 0, len(s))
	for _, v := range s {
		if v != "" {
			vals = append(vals, v)
		}
	}
	sort.Slice(vals, func(i, j int) bool { return len(vals[i]) > len(vals[j]) })
	return vals
}

// Passthrough returns NAME=value pairs from the current process environment
// for each listed name that is set.
func Passthrough(names []string) []string {
	var env []string
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}
