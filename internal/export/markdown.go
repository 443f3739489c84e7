// Package export renders a store snapshot as a markdown report.
//
// The output depends only on stored data: sections follow a fixed kind order,
// entries are sorted by id, map keys are sorted, and no wall-clock time is
// written. Exporting unchanged data twice yields identical bytes.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mschulkind/context-portal/internal/apperr"
	"github.com/mschulkind/context-portal/internal/models"
	"github.com/mschulkind/context-portal/internal/storage"
)

// DefaultDir is where reports go when no output path is given, relative to
// the workspace.
const DefaultDir = "conport_export"

// DefaultFile is the report file name inside DefaultDir.
const DefaultFile = "conport_export.md"

var titles = map[models.Kind]string{
	models.KindProductContext: "Product Context",
	models.KindActiveContext:  "Active Context",
	models.KindDecision:       "Decisions",
	models.KindProgress:       "Progress",
	models.KindSystemPattern:  "System Patterns",
	models.KindGlossaryTerm:   "Glossary",
	models.KindCustomData:     "Custom Data",
}

// Markdown renders snap.
func Markdown(snap storage.Snapshot) ([]byte, error) {
	var b strings.Builder
	b.WriteString("# ConPort Export\n")

	for _, c := range snap.Contexts {
		fmt.Fprintf(&b, "\n## %s\n\n", titles[c.Kind])
		if len(c.Content) == 0 {
			b.WriteString("_empty_\n")
			continue
		}
		if err := writeYAML(&b, c.Content); err != nil {
			return nil, fmt.Errorf("render %s: %w", c.Kind, err)
		}
	}

	for _, kind := range models.ItemKinds {
		items := snap.Items[kind]
		fmt.Fprintf(&b, "\n## %s\n", titles[kind])
		if len(items) == 0 {
			b.WriteString("\n_none_\n")
			continue
		}
		for _, item := range items {
			if err := writeItem(&b, item); err != nil {
				return nil, fmt.Errorf("render %s: %w", kind, err)
			}
		}
	}

	b.WriteString("\n## Links\n")
	if len(snap.Links) == 0 {
		b.WriteString("\n_none_\n")
	}
	for _, l := range snap.Links {
		fmt.Fprintf(&b, "\n- %s %d -[%s]-> %s %d", l.SourceType, l.SourceID, l.RelationshipType, l.TargetType, l.TargetID)
		if l.Description != "" {
			fmt.Fprintf(&b, ": %s", l.Description)
		}
		fmt.Fprintf(&b, " (%s)", stamp(l.CreatedAt))
	}
	if len(snap.Links) > 0 {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func writeItem(b *strings.Builder, item any) error {
	switch e := item.(type) {
	case storage.Decision:
		fmt.Fprintf(b, "\n### Decision %d: %s\n\n", e.ID, e.Body.Summary)
		writeMeta(b, e.Envelope)
		if e.Body.Rationale != "" {
			fmt.Fprintf(b, "\n**Rationale:** %s\n", e.Body.Rationale)
		}
		if e.Body.ImplementationDetails != "" {
			fmt.Fprintf(b, "\n**Implementation details:** %s\n", e.Body.ImplementationDetails)
		}
	case storage.Progress:
		fmt.Fprintf(b, "\n### Progress %d: [%s] %s\n\n", e.ID, e.Body.Status, e.Body.Description)
		writeMeta(b, e.Envelope)
		if e.Body.ParentID != nil {
			fmt.Fprintf(b, "- parent: %d\n", *e.Body.ParentID)
		}
	case storage.SystemPattern:
		fmt.Fprintf(b, "\n### Pattern %d: %s\n\n", e.ID, e.Body.Name)
		writeMeta(b, e.Envelope)
		if e.Body.Description != "" {
			fmt.Fprintf(b, "\n%s\n", e.Body.Description)
		}
	case storage.KeyedEntry:
		fmt.Fprintf(b, "\n### %s / %s (%d)\n\n", e.Body.Category, e.Body.Key, e.ID)
		writeMeta(b, e.Envelope)
		b.WriteString("\n")
		return writeYAML(b, e.Body.Value)
	default:
		return fmt.Errorf("unexpected item %T", item)
	}
	return nil
}

func writeMeta(b *strings.Builder, env models.Envelope) {
	fmt.Fprintf(b, "- created: %s\n", stamp(env.CreatedAt))
	if !env.UpdatedAt.Equal(env.CreatedAt) {
		fmt.Fprintf(b, "- updated: %s\n", stamp(env.UpdatedAt))
	}
	if len(env.Tags) > 0 {
		fmt.Fprintf(b, "- tags: %s\n", strings.Join(env.Tags, ", "))
	}
}

func writeYAML(b *strings.Builder, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	b.WriteString("```yaml\n")
	b.Write(out)
	b.WriteString("```\n")
	return nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Result describes a written report.
type Result struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// ToFile snapshots st and writes the report. A relative out is resolved
// against workspaceDir; an empty one selects DefaultDir/DefaultFile.
func ToFile(ctx context.Context, st *storage.Store, workspaceDir, out string) (Result, error) {
	snap, err := st.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	doc, err := Markdown(snap)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.StorageIO, err, "render export")
	}

	if out == "" {
		out = filepath.Join(DefaultDir, DefaultFile)
	}
	out = filepath.FromSlash(out)
	if !filepath.IsAbs(out) {
		out = filepath.Join(workspaceDir, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Result{}, apperr.Wrap(apperr.StorageIO, err, "create export directory")
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return Result{}, apperr.Wrap(apperr.StorageIO, err, "write export")
	}
	return Result{Path: filepath.ToSlash(out), Bytes: len(doc)}, nil
}
