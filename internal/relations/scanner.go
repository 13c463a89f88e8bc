// Package relations discovers forward relations in record payloads: values
// that reference other objects by UUID, prefixed identifier, or URL.
package relations

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"objectloader/internal/schema"
)

// Map records discovered relations keyed by the dot-notation path of the
// referencing value within the payload. Built fresh per record.
type Map map[string]string

var (
	uuidPattern     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	prefixedPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*-[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	identPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// stopList holds common snake_case and kebab-case payload values that
// satisfy the generic identifier shape but are never object references.
var stopList = map[string]struct{}{
	"created_at":  {},
	"updated_at":  {},
	"deleted_at":  {},
	"first_name":  {},
	"last_name":   {},
	"full_name":   {},
	"user_name":   {},
	"read_only":   {},
	"write_only":  {},
	"in_progress": {},
	"not_found":   {},
	"on_hold":     {},
	"opt_out":     {},
	"sign_off":    {},
	"follow-up":   {},
	"e-mail":      {},
	"check-in":    {},
	"check-out":   {},
	"opt-in":      {},
	"walk-in":     {},
}

// IsReference classifies a string value as a reference to another object.
// The value is trimmed first; an empty string is never a reference.
// Checks apply in order: canonical UUID, word-prefixed UUID, absolute
// URL, then a generic identifier shape (alphanumeric, length >= 8, at
// least one hyphen or underscore, no whitespace) filtered through a fixed
// stop-list of known non-identifier terms.
func IsReference(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if uuidPattern.MatchString(v) {
		return true
	}
	if prefixedPattern.MatchString(v) {
		return true
	}
	if u, err := url.Parse(v); err == nil && u.IsAbs() && u.Host != "" {
		return true
	}
	if len(v) >= 8 && identPattern.MatchString(v) &&
		(strings.ContainsRune(v, '-') || strings.ContainsRune(v, '_')) {
		if _, stopped := stopList[strings.ToLower(v)]; !stopped {
			return true
		}
	}
	return false
}

// Scan walks a payload and returns the relation map. The schema, when
// provided, makes two classifications unconditional: string properties
// declared type=text with a uuid/uri/url format (or type=object), and
// array properties declared as arrays of related objects. Everything
// else falls through to the IsReference heuristic.
func Scan(payload map[string]any, s *schema.Schema) Map {
	out := Map{}
	var props map[string]*schema.Property
	if s != nil {
		props = s.Properties
	}
	scanObject(payload, props, "", out)
	return out
}

func scanObject(obj map[string]any, props map[string]*schema.Property, prefix string, out Map) {
	for key, val := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		scanValue(val, props[key], path, out)
	}
}

func scanValue(val any, prop *schema.Property, path string, out Map) {
	switch v := val.(type) {
	case string:
		scanString(v, prop, path, out)
	case []any:
		if len(v) == 0 {
			return
		}
		if isRelatedObjectArray(prop) {
			var item *schema.Property
			if prop != nil {
				item = prop.Items
			}
			for i, el := range v {
				scanValue(el, item, fmt.Sprintf("%s.%d", path, i), out)
			}
			return
		}
		for i, el := range v {
			elemPath := fmt.Sprintf("%s.%d", path, i)
			switch e := el.(type) {
			case string:
				if s := strings.TrimSpace(e); s != "" && IsReference(s) {
					out[elemPath] = s
				}
			case map[string]any:
				var nested map[string]*schema.Property
				if prop != nil && prop.Items != nil {
					nested = prop.Items.Properties
				}
				scanObject(e, nested, elemPath, out)
			case []any:
				scanValue(e, nil, elemPath, out)
			}
		}
	case map[string]any:
		var nested map[string]*schema.Property
		if prop != nil {
			nested = prop.Properties
		}
		scanObject(v, nested, path, out)
	}
}

func scanString(v string, prop *schema.Property, path string, out Map) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	if declaredRelation(prop) {
		out[path] = v
		return
	}
	if IsReference(v) {
		out[path] = v
	}
}

// declaredRelation reports whether the schema marks this property as a
// reference regardless of value shape.
func declaredRelation(prop *schema.Property) bool {
	if prop == nil {
		return false
	}
	if prop.Type == "object" {
		return true
	}
	if prop.Type == "text" || prop.Type == "string" {
		switch prop.Format {
		case "uuid", "uri", "url":
			return true
		}
	}
	return false
}

// isRelatedObjectArray reports whether the property is declared as an
// array of related objects.
func isRelatedObjectArray(prop *schema.Property) bool {
	if prop == nil || prop.Type != "array" || prop.Items == nil {
		return false
	}
	return prop.Items.InversedBy != "" || declaredRelation(prop.Items)
}
