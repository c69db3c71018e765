package config

import (
	"reflect"
	"slices"
	"strings"
)

// Change sources.
const (
	SourceUpdate = "update"
	SourceFile   = "file"
)

// Change is one accepted config update.
type Change struct {
	Previous Config
	Current  Config
	// Fields holds the json names of the fields that differ, in struct order.
	Fields []string
	Source string
}

// processFields only affect the host process, never the analysis engine.
var processFields = map[string]bool{
	"log_level":          true,
	"debug":              true,
	"trace_enabled":      true,
	"http_addr":          true,
	"metrics_addr":       true,
	"eino_debug_enabled": true,
	"eino_debug_port":    true,
}

// storageFields are read once, when a runtime opens its storage.
var storageFields = []string{"db_path", "memory_persist", "results_dir", "write_reports"}

// Touches reports whether any of fields changed.
func (c Change) Touches(fields ...string) bool {
	for _, f := range fields {
		if slices.Contains(c.Fields, f) {
			return true
		}
	}
	return false
}

// RebuildsEngine is false when only process level fields changed.
func (c Change) RebuildsEngine() bool {
	for _, f := range c.Fields {
		if !processFields[f] {
			return true
		}
	}
	return false
}

// Deferred lists the changed fields that need a restart to take effect.
func (c Change) Deferred() []string {
	var out []string
	for _, f := range storageFields {
		if c.Touches(f) {
			out = append(out, f)
		}
	}
	return out
}

func diffFields(a, b Config) []string {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	t := va.Type()
	var out []string
	for i := 0; i < t.NumField(); i++ {
		if reflect.DeepEqual(va.Field(i).Interface(), vb.Field(i).Interface()) {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name = t.Field(i).Name
		}
		out = append(out, name)
	}
	return out
}
