package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go template
// syntax: {{.LUMA_API_KEY}} → value of LUMA_API_KEY. The {{.VAR}} form is
// used instead of $VAR so literal dollar signs in prompts, regexes and
// passwords pass through untouched.
//
// Missing variables expand to the empty string; validation catches required
// fields left empty. Malformed template syntax returns the input unchanged
// so plain YAML never fails expansion.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		if idx := strings.IndexByte(env, '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}
	return buf.Bytes()
}
