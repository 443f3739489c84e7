package models

import (
	"encoding/json"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// Decision records an architectural or product decision.
type Decision struct {
	Summary               string `json:"summary"`
	Rationale             string `json:"rationale,omitempty"`
	ImplementationDetails string `json:"implementation_details,omitempty"`
}

// Validate requires a summary.
func (d Decision) Validate() error {
	if strings.TrimSpace(d.Summary) == "" {
		return apperr.Invalid("decision summary is required")
	}
	return nil
}

// SearchText indexes the summary as title, rationale and details as text.
func (d Decision) SearchText() (string, string, bool) {
	return d.Summary, joinNonEmpty(d.Rationale, d.ImplementationDetails), true
}

// Progress status vocabulary.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusBlocked    = "BLOCKED"
)

var statuses = mapset.NewSet(StatusTodo, StatusInProgress, StatusDone, StatusBlocked)

// NormalizeStatus maps user spellings such as "in progress" onto the
// vocabulary and rejects anything else.
func NormalizeStatus(s string) (string, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	if !statuses.Contains(norm) {
		return "", apperr.Invalid("unknown progress status %q (want one of %s)", s, strings.Join(Statuses(), ", "))
	}
	return norm, nil
}

// Statuses lists the vocabulary, sorted.
func Statuses() []string {
	out := statuses.ToSlice()
	sort.Strings(out)
	return out
}

// Progress is a task or milestone entry.
type Progress struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

// Validate checks the status vocabulary and requires a description.
func (p Progress) Validate() error {
	if _, err := NormalizeStatus(p.Status); err != nil {
		return err
	}
	if strings.TrimSpace(p.Description) == "" {
		return apperr.Invalid("progress description is required")
	}
	return nil
}

// SearchText reports that progress entries are not indexed.
func (p Progress) SearchText() (string, string, bool) { return "", "", false }

// SystemPattern describes a recurring technical pattern.
type SystemPattern struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Validate requires a name.
func (p SystemPattern) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.Invalid("system pattern name is required")
	}
	return nil
}

// SearchText indexes the name as title and the description as text.
func (p SystemPattern) SearchText() (string, string, bool) {
	return p.Name, p.Description, true
}

// DefaultGlossaryCategory is the category of glossary terms logged without one.
const DefaultGlossaryCategory = "ProjectGlossary"

// KeyedValue is the body of custom data and glossary terms: structured data
// addressed by (category, key).
type KeyedValue struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
}

// Validate requires category, key and a non-null value.
func (v KeyedValue) Validate() error {
	if strings.TrimSpace(v.Category) == "" {
		return apperr.Invalid("category is required")
	}
	if strings.TrimSpace(v.Key) == "" {
		return apperr.Invalid("key is required")
	}
	if v.Value == nil {
		return apperr.Invalid("value is required")
	}
	return nil
}

// SearchText indexes category and key as title and the flattened value as text.
func (v KeyedValue) SearchText() (string, string, bool) {
	return v.Category + " " + v.Key, ValueText(v.Value), true
}

// UnmarshalJSON decodes Value with exact numbers.
func (v *KeyedValue) UnmarshalJSON(data []byte) error {
	type keyedValue KeyedValue
	var raw keyedValue
	if err := DecodeJSON(data, &raw); err != nil {
		return err
	}
	raw.Value = PlainNumbers(raw.Value)
	*v = KeyedValue(raw)
	return nil
}

// ValueText flattens a structured value to the text that gets indexed.
func ValueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// NormalizeTags trims, drops empties, removes duplicates and sorts.
func NormalizeTags(tags []string) []string {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			set.Add(t)
		}
	}
	out := set.ToSlice()
	sort.Strings(out)
	return out
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
