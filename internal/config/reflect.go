package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Field represents metadata about a config field extracted from struct tags
type Field struct {
	Key      string // e.g., "api.base_url"
	Default  string // default value as string
	Desc     string // description for help text
	Min      int    // minimum value for int fields (0 = no limit)
	Max      int    // maximum value for int fields (0 = no limit)
	Type     string // "string" or "int"
	Category string // e.g., "api", "table"
	ReadOnly bool   // if true, cannot be set via CLI
}

var (
	fieldCache     []Field
	fieldCacheOnce sync.Once
)

// fields extracts all config fields from Config using reflection
func fields() []Field {
	fieldCacheOnce.Do(func() {
		var out []Field
		cfg := &Config{}
		extractFields(reflect.TypeOf(cfg).Elem(), &out)

		// Sort by key for consistent ordering
		sort.Slice(out, func(i, j int) bool {
			return out[i].Key < out[j].Key
		})
		fieldCache = out
	})
	return fieldCache
}

// extractFields recursively extracts config fields from a struct
func extractFields(t reflect.Type, out *[]Field) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		configKey := field.Tag.Get("config")
		if configKey == "" {
			if field.Type.Kind() == reflect.Struct && field.Tag.Get("toml") != "" {
				extractFields(field.Type, out)
			}
			continue
		}

		cf := Field{
			Key:      configKey,
			Default:  field.Tag.Get("default"),
			Desc:     field.Tag.Get("desc"),
			Category: strings.Split(configKey, ".")[0],
			ReadOnly: field.Tag.Get("readonly") == "true",
		}

		// Parse min/max for validation
		if minStr := field.Tag.Get("min"); minStr != "" {
			cf.Min, _ = strconv.Atoi(minStr)
		}
		if maxStr := field.Tag.Get("max"); maxStr != "" {
			cf.Max, _ = strconv.Atoi(maxStr)
		}

		switch field.Type.Kind() {
		case reflect.Int:
			cf.Type = "int"
		case reflect.String:
			cf.Type = "string"
		}

		*out = append(*out, cf)
	}
}

// findField finds a config field by key
func findField(key string) *Field {
	key = normalizeKey(key)
	for _, f := range fields() {
		if f.Key == key {
			return &f
		}
	}
	return nil
}

// normalizeKey handles key aliases
func normalizeKey(key string) string {
	aliases := map[string]string{
		"api.url":        "api.base_url",
		"api.timeout":    "api.timeout_seconds",
		"watch.interval": "watch.interval_seconds",
	}
	if normalized, ok := aliases[key]; ok {
		return normalized
	}
	return key
}

// lookup returns the struct field addressed by a "section.name" key
func lookup(cfg *Config, key string) (reflect.Value, bool) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return reflect.Value{}, false
	}

	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	// Find the nested struct by toml tag
	var section reflect.Value
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == parts[0] {
			section = v.Field(i)
			break
		}
	}
	if !section.IsValid() || section.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	st := section.Type()
	for i := 0; i < st.NumField(); i++ {
		if st.Field(i).Tag.Get("config") == key {
			return section.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// getFieldValue gets a field value from a config struct using reflection
func getFieldValue(cfg *Config, key string) (string, bool) {
	fv, ok := lookup(cfg, normalizeKey(key))
	if !ok {
		return "", false
	}
	switch fv.Kind() {
	case reflect.String:
		return fv.String(), true
	case reflect.Int:
		return strconv.FormatInt(fv.Int(), 10), true
	}
	return "", false
}

// setFieldValue sets a field value on a config struct using reflection
func setFieldValue(cfg *Config, key, value string) error {
	key = normalizeKey(key)

	field := findField(key)
	if field == nil {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if field.ReadOnly {
		return fmt.Errorf("config key %s is read-only", key)
	}

	fv, ok := lookup(cfg, key)
	if !ok {
		return fmt.Errorf("field not found: %s", key)
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(value)
		return nil

	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}

		// Validate min/max
		if field.Min != 0 && intVal < field.Min {
			return fmt.Errorf("value %d is below minimum %d", intVal, field.Min)
		}
		if field.Max != 0 && intVal > field.Max {
			return fmt.Errorf("value %d exceeds maximum %d", intVal, field.Max)
		}

		fv.SetInt(int64(intVal))
		return nil
	}

	return fmt.Errorf("unsupported config type for %s", key)
}

// ListKeys returns all settable config keys
func ListKeys() []string {
	fs := fields()
	keys := make([]string, 0, len(fs))
	for _, f := range fs {
		if !f.ReadOnly {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// FieldsByCategory returns config fields grouped by category
func FieldsByCategory() map[string][]Field {
	result := make(map[string][]Field)
	for _, f := range fields() {
		result[f.Category] = append(result[f.Category], f)
	}
	return result
}

// GenerateHelpText generates help text for config options
func GenerateHelpText() string {
	var sb strings.Builder

	byCategory := FieldsByCategory()

	// Define category order and titles
	categories := []struct {
		key   string
		title string
	}{
		{"api", "Backend"},
		{"table", "Tables"},
		{"replica", "Read replica"},
		{"watch", "Watch"},
	}

	for _, cat := range categories {
		fs, ok := byCategory[cat.key]
		if !ok || len(fs) == 0 {
			continue
		}

		sb.WriteString(fmt.Sprintf("  %s:\n", cat.title))
		for _, f := range fs {
			defaultStr := ""
			if f.Default != "" {
				defaultStr = fmt.Sprintf(" (default: %s)", f.Default)
			}
			// Pad key to align descriptions
			sb.WriteString(fmt.Sprintf("    %-28s %s%s\n", f.Key, f.Desc, defaultStr))
		}
		sb.WriteString("\n")
	}

	return strings.TrimSuffix(sb.String(), "\n")
}
