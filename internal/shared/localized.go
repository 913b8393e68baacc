package shared

import (
	"encoding/json"

	"golang.org/x/text/language"
)

// LocalizedText stores translations keyed by BCP-47 language tag. It is
// persisted as JSONB and resolved per request using language matching.
type LocalizedText map[string]string

// Resolve picks the best translation for the requested locale. When no tag
// matches, the fallback locale is tried, then any available translation.
func (t LocalizedText) Resolve(locale, fallback string) string {
	if len(t) == 0 {
		return ""
	}
	tags := make([]language.Tag, 0, len(t))
	keys := make([]string, 0, len(t))
	for key := range t {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		keys = append(keys, key)
	}
	if len(tags) > 0 {
		matcher := language.NewMatcher(tags)
		if desired, err := language.Parse(locale); err == nil {
			if _, index, conf := matcher.Match(desired); conf > language.No {
				return t[keys[index]]
			}
		}
	}
	if value, ok := t[fallback]; ok {
		return value
	}
	for _, value := range t {
		return value
	}
	return ""
}

// Value implements JSON encoding for database storage.
func (t LocalizedText) Value() ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t)
}

// Scan decodes a JSONB payload.
func (t *LocalizedText) Scan(data []byte) error {
	if len(data) == 0 {
		*t = LocalizedText{}
		return nil
	}
	return json.Unmarshal(data, t)
}
