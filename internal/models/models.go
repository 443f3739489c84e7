package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mschulkind/context-portal/internal/apperr"
)

// Kind names an entity kind.
type Kind string

const (
	KindProductContext Kind = "product_context"
	KindActiveContext  Kind = "active_context"
	KindDecision       Kind = "decision"
	KindProgress       Kind = "progress_entry"
	KindSystemPattern  Kind = "system_pattern"
	KindGlossaryTerm   Kind = "glossary_term"
	KindCustomData     Kind = "custom_data"
)

// ItemKinds are the id-bearing kinds, in export order.
var ItemKinds = []Kind{KindDecision, KindProgress, KindSystemPattern, KindGlossaryTerm, KindCustomData}

// ContextKinds are the snapshot kinds, in export order.
var ContextKinds = []Kind{KindProductContext, KindActiveContext}

// SearchableKinds are the kinds kept in the full-text index.
var SearchableKinds = []Kind{KindDecision, KindSystemPattern, KindGlossaryTerm, KindCustomData}

// ParseKind validates s against the known kinds.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindProductContext, KindActiveContext, KindDecision, KindProgress,
		KindSystemPattern, KindGlossaryTerm, KindCustomData:
		return k, nil
	}
	return "", apperr.Invalid("unknown item type %q", s)
}

// ParseItemKind is ParseKind restricted to id-bearing kinds.
func ParseItemKind(s string) (Kind, error) {
	k, err := ParseKind(s)
	if err != nil {
		return "", err
	}
	if !k.HasID() {
		return "", apperr.Invalid("item type %q has no ids", s)
	}
	return k, nil
}

// HasID reports whether entities of k are addressed by id.
func (k Kind) HasID() bool {
	return k != KindProductContext && k != KindActiveContext
}

// Tagged reports whether entities of k carry editable tags.
func (k Kind) Tagged() bool {
	return k == KindDecision || k == KindSystemPattern
}

// Envelope is the part every entity shares.
type Envelope struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []string  `json:"tags,omitempty"`
}

// Body is the kind-specific payload of an entity.
type Body interface {
	// Validate checks required fields and vocabularies.
	Validate() error
	// SearchText returns the indexed free text, or ok=false when the kind is
	// not indexed.
	SearchText() (title, text string, ok bool)
}

// Entry is one entity: a shared envelope and a kind-specific body. It
// marshals flat, with the body fields next to the envelope fields.
type Entry[B Body] struct {
	Envelope
	Body B
}

// MarshalJSON writes the envelope and body fields as one object.
func (e Entry[B]) MarshalJSON() ([]byte, error) {
	env, err := json.Marshal(e.Envelope)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(e.Body)
	if err != nil {
		return nil, err
	}
	return mergeObjects(env, body)
}

// UnmarshalJSON reads both halves from the same flat object.
func (e *Entry[B]) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Envelope); err != nil {
		return err
	}
	return json.Unmarshal(data, &e.Body)
}

func mergeObjects(a, b []byte) ([]byte, error) {
	a = bytes.TrimSpace(a)
	b = bytes.TrimSpace(b)
	if len(a) < 2 || a[0] != '{' || len(b) < 2 || b[0] != '{' {
		return nil, fmt.Errorf("merge: expected JSON objects")
	}
	inner := bytes.TrimSpace(b[1 : len(b)-1])
	if len(inner) == 0 {
		return a, nil
	}
	out := make([]byte, 0, len(a)+len(inner)+1)
	out = append(out, a[:len(a)-1]...)
	out = append(out, ',')
	out = append(out, inner...)
	out = append(out, '}')
	return out, nil
}

// ContextSnapshot is the current content of a context kind.
type ContextSnapshot struct {
	Kind      Kind           `json:"kind"`
	Content   map[string]any `json:"content"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// Link is a directed, labelled edge between two entities.
type Link struct {
	ID               int64     `json:"id"`
	SourceType       Kind      `json:"source_item_type"`
	SourceID         int64     `json:"source_item_id"`
	TargetType       Kind      `json:"target_item_type"`
	TargetID         int64     `json:"target_item_id"`
	RelationshipType string    `json:"relationship_type"`
	Description      string    `json:"description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Direction of a link relative to the queried item.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// LinkedItem is a link seen from one of its endpoints.
type LinkedItem struct {
	Link
	Direction Direction `json:"direction"`
}

// SearchHit is one ranked full-text match.
type SearchHit struct {
	Kind  Kind    `json:"kind"`
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
	Item  any     `json:"item"`
}

// ActivitySummary groups recently touched entities by kind.
type ActivitySummary struct {
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	HoursAgo    int64          `json:"hours_ago"`
	Items       map[Kind][]any `json:"items"`
	Links       []Link         `json:"links"`
}
