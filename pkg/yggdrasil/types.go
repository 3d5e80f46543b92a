package yggdrasil

import (
	"errors"
	"strings"
)

// Errors returned by engine operations. Precondition failures are routine
// caller outcomes; distinguish them with errors.Is rather than string
// matching. Anything else propagating out of an operation is a store fault.
var (
	// ErrEntityNotFound is returned when an operation requires an entity
	// that does not exist in the graph.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrRelationNotFound is returned when an operation requires an edge
	// that does not exist between two existing entities.
	ErrRelationNotFound = errors.New("relation not found")
	// ErrNoEmbedder is returned by similarity search when the engine was
	// built without an embedder.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// Well-known attribute defaults.
const (
	// DefaultEntityType is assigned to entities whose type was never
	// extracted.
	DefaultEntityType = "UNKNOWN"
	// DefaultRelationSource marks relations inserted by hand rather than by
	// document ingestion.
	DefaultRelationSource = "CUSTOM_RELATION"
	// DefaultDescription is assigned at the ingestion boundary when an
	// entity is created without one. The engine itself never creates
	// entities and never enforces it.
	DefaultDescription = "No description provided"
	// DefaultWeight is the edge weight applied when a relation omits one.
	DefaultWeight = 1.0
	// FieldSeparator joins provenance lists into the single source_id string
	// stored on an edge; mergeSourceIDs splits and rejoins on it.
	FieldSeparator = "<SEP>"
)

// mergeSourceIDs unions two FieldSeparator-joined provenance lists, keeping
// first-seen order and dropping duplicates and empty entries.
func mergeSourceIDs(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	if incoming == "" {
		return existing
	}

	seen := make(map[string]bool)
	var ids []string
	for _, id := range strings.Split(existing+FieldSeparator+incoming, FieldSeparator) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return strings.Join(ids, FieldSeparator)
}

// NormalizeEntityName converts a human-readable entity name into the graph
// key form: upper-cased and quote-wrapped. Idempotent, so already-normalized
// names pass through unchanged; every graph lookup and write in this package
// goes through it.
func NormalizeEntityName(name string) string {
	return `"` + strings.ToUpper(strings.Trim(name, `"`)) + `"`
}

// RelationSpec describes one relation to insert between two existing
// entities. SrcID and TgtID may be raw or normalized names.
type RelationSpec struct {
	SrcID       string   `json:"src_id"`
	TgtID       string   `json:"tgt_id"`
	Description string   `json:"description"`
	Keywords    string   `json:"keywords"`
	// Weight is optional; nil defaults to DefaultWeight.
	Weight *float64 `json:"weight,omitempty"`
	// SourceID is optional provenance; empty defaults to
	// DefaultRelationSource.
	SourceID string `json:"source_id,omitempty"`
}

// AddedRelation identifies a successfully inserted relation by its
// normalized endpoint keys.
type AddedRelation struct {
	SrcID string `json:"src_id"`
	TgtID string `json:"tgt_id"`
}

// SkippedRelation records a batch item that was not inserted, with a
// machine-readable reason naming the missing side.
type SkippedRelation struct {
	SrcID  string `json:"src_id"`
	TgtID  string `json:"tgt_id"`
	Reason string `json:"reason"`
}

// BatchResult summarizes a batch relation insertion. One missing endpoint
// never aborts the batch; it lands in Skipped and the loop continues.
type BatchResult struct {
	// OpID correlates the result with the engine's log lines.
	OpID         string            `json:"op_id"`
	Added        []AddedRelation   `json:"added"`
	Skipped      []SkippedRelation `json:"skipped"`
	TotalAdded   int               `json:"total_added"`
	TotalSkipped int               `json:"total_skipped"`
}
