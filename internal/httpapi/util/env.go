// Package util reads configuration that arrives through the environment
// rather than the config file, such as CORS origins and OAuth credentials.
package util

import (
	"os"
	"strings"
)

// Env returns the trimmed value of k, or def when unset or blank.
func Env(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return def
}

// EnvCSV splits k on commas, dropping blank entries. An unset or empty
// variable yields def.
func EnvCSV(k string, def []string) []string {
	raw := Env(k, "")
	if raw == "" {
		return def
	}

	out := make([]string, 0, 4)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MustEnv panics when k is unset. Only for CLI startup paths where the
// variable is a hard prerequisite.
func MustEnv(k string) string {
	v := Env(k, "")
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
