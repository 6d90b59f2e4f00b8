// Package scripts holds the Playwright snippets run inside Kernel browsers
// through the Playwright execution API.
package scripts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed js/get_item.js
var GetItemScript string

//go:embed js/set_item.js
var SetItemScript string

//go:embed js/current_url.js
var CurrentURLScript string

//go:embed js/snapshot.js
var SnapshotScript string

// Environment variable names read by the scripts.
const (
	EnvKey   = "REVIEWKIT_KEY"
	EnvValue = "REVIEWKIT_VALUE"
)

// Build prefixes script with process.env assignments for env, in key order.
func Build(script string, env map[string]string) string {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "process.env.%s = %s;\n", name, jsString(env[name]))
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(script)
	return sb.String()
}

// jsString returns s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
