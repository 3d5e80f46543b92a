package yggdrasil

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/ident"
	"github.com/orneryd/yggdrasil/pkg/vector"
)

// InsertCustomRelations creates relations between already-existing entities.
//
// Items are processed independently: an item whose source or target entity is
// missing lands in the skip list with a reason naming the missing side, and
// the loop continues with the remaining items. Edges are written
// to the graph as they are accepted; the derived vector records are staged
// and upserted in one batched call after the loop, one round-trip regardless
// of batch size. Re-inserting a relation that already exists unions its
// provenance: the old and new source_id values are joined with
// FieldSeparator instead of the new one overwriting the old. Each store that
// was written is finalized exactly once at the end, on success and on
// failure paths alike.
func (e *Engine) InsertCustomRelations(ctx context.Context, specs []RelationSpec) (*BatchResult, error) {
	opID := newOpID()
	result := &BatchResult{OpID: opID}
	staged := make(map[string]vector.Record)

	var touched []finalizer

	for _, spec := range specs {
		src := NormalizeEntityName(spec.SrcID)
		tgt := NormalizeEntityName(spec.TgtID)

		srcExists, err := e.graph.HasNode(ctx, src)
		if err != nil {
			return nil, e.finish(ctx, fmt.Errorf("check entity %s: %w", src, err), touched...)
		}
		tgtExists, err := e.graph.HasNode(ctx, tgt)
		if err != nil {
			return nil, e.finish(ctx, fmt.Errorf("check entity %s: %w", tgt, err), touched...)
		}

		if !srcExists || !tgtExists {
			reason := fmt.Sprintf("source entity %s does not exist", src)
			if srcExists {
				reason = fmt.Sprintf("target entity %s does not exist", tgt)
			}
			result.Skipped = append(result.Skipped, SkippedRelation{
				SrcID:  src,
				TgtID:  tgt,
				Reason: reason,
			})
			continue
		}

		weight := DefaultWeight
		if spec.Weight != nil {
			weight = *spec.Weight
		}
		sourceID := spec.SourceID
		if sourceID == "" {
			sourceID = DefaultRelationSource
		}
		// An existing edge keeps its provenance: union the source_id lists
		// rather than letting the incoming value overwrite them.
		existing, err := e.graph.GetEdge(ctx, src, tgt)
		if err != nil && !errorsIsNotFound(err) {
			return nil, e.finish(ctx, fmt.Errorf("fetch edge %s -> %s: %w", src, tgt, err), touched...)
		}
		if existing != nil {
			sourceID = mergeSourceIDs(attrString(existing, "source_id"), sourceID)
		}

		if len(touched) == 0 {
			touched = append(touched, e.graph)
		}
		err = e.graph.UpsertEdge(ctx, src, tgt, graph.Attrs{
			"weight":      weight,
			"description": spec.Description,
			"keywords":    spec.Keywords,
			"source_id":   sourceID,
		})
		if err != nil {
			return nil, e.finish(ctx, fmt.Errorf("upsert edge %s -> %s: %w", src, tgt, err), touched...)
		}

		relKey := ident.RelationKey(spec.Keywords, src, tgt, spec.Description)
		staged[relKey] = vector.Record{
			Content:  spec.Keywords + src + tgt + spec.Description,
			Metadata: map[string]string{"src_id": src, "tgt_id": tgt},
		}
		result.Added = append(result.Added, AddedRelation{SrcID: src, TgtID: tgt})
	}

	if len(staged) > 0 {
		if err := e.embedRecords(ctx, staged); err != nil {
			return nil, e.finish(ctx, fmt.Errorf("embed relations: %w", err), touched...)
		}
		// The relation index only counts as touched once a write to it is
		// attempted; embedding failures above never flush it.
		touched = append(touched, e.relations)
		if err := e.relations.Upsert(ctx, staged); err != nil {
			return nil, e.finish(ctx, fmt.Errorf("upsert relation vectors: %w", err), touched...)
		}
	}

	result.TotalAdded = len(result.Added)
	result.TotalSkipped = len(result.Skipped)

	if err := e.finish(ctx, nil, touched...); err != nil {
		return nil, err
	}

	e.log.Info("custom relations inserted",
		zap.String("op_id", opID),
		zap.Int("added", result.TotalAdded),
		zap.Int("skipped", result.TotalSkipped),
	)
	return result, nil
}

// UpdateRelation merges a partial attribute map into an existing relation
// and re-projects it into the relation vector index.
//
// Preconditions are checked in order, each with its own typed failure:
// missing source entity, then missing target entity (both
// ErrEntityNotFound, naming the side), then missing edge
// (ErrRelationNotFound). Merge semantics are the shallow overlay of
// UpdateEntity with one field-level exception: source_id is preserved from
// the current edge whenever the update omits it, so content edits never
// silently erase provenance. The merged attribute map is returned.
func (e *Engine) UpdateRelation(ctx context.Context, srcName, tgtName string, updates graph.Attrs) (graph.Attrs, error) {
	opID := newOpID()
	src := NormalizeEntityName(srcName)
	tgt := NormalizeEntityName(tgtName)

	srcExists, err := e.graph.HasNode(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("check entity %s: %w", src, err)
	}
	if !srcExists {
		return nil, fmt.Errorf("%w: source %s", ErrEntityNotFound, srcName)
	}

	tgtExists, err := e.graph.HasNode(ctx, tgt)
	if err != nil {
		return nil, fmt.Errorf("check entity %s: %w", tgt, err)
	}
	if !tgtExists {
		return nil, fmt.Errorf("%w: target %s", ErrEntityNotFound, tgtName)
	}

	edgeExists, err := e.graph.HasEdge(ctx, src, tgt)
	if err != nil {
		return nil, fmt.Errorf("check edge %s -> %s: %w", src, tgt, err)
	}
	if !edgeExists {
		return nil, fmt.Errorf("%w: %s -> %s", ErrRelationNotFound, srcName, tgtName)
	}

	// Tolerate sparse edges: the store may report the edge present yet hold
	// no attributes for it.
	current, err := e.graph.GetEdge(ctx, src, tgt)
	if err != nil && !errorsIsNotFound(err) {
		return nil, fmt.Errorf("fetch edge %s -> %s: %w", src, tgt, err)
	}
	if current == nil {
		current = graph.Attrs{}
	}

	merged := overlay(current, updates)
	// Provenance preservation: an update that omits source_id keeps the
	// current one.
	if _, supplied := updates["source_id"]; !supplied {
		if sourceID, ok := current["source_id"]; ok {
			merged["source_id"] = sourceID
		}
	}

	touched := []finalizer{e.graph}
	if err := e.graph.UpsertEdge(ctx, src, tgt, merged); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("upsert edge %s -> %s: %w", src, tgt, err), touched...)
	}

	oldVecKey := ident.RelationKey(attrString(current, "keywords"), src, tgt, attrString(current, "description"))
	newVecKey := ident.RelationKey(attrString(merged, "keywords"), src, tgt, attrString(merged, "description"))

	record := map[string]vector.Record{
		newVecKey: {
			Content:  attrString(merged, "keywords") + src + tgt + attrString(merged, "description"),
			Metadata: map[string]string{"src_id": src, "tgt_id": tgt},
		},
	}
	if err := e.embedRecords(ctx, record); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("embed relation %s -> %s: %w", src, tgt, err), touched...)
	}

	touched = append(touched, e.relations)
	if oldVecKey != newVecKey {
		if err := e.relations.Delete(ctx, []string{oldVecKey}); err != nil {
			return nil, e.finish(ctx, fmt.Errorf("delete stale relation vector %s: %w", oldVecKey, err), touched...)
		}
	}

	if err := e.relations.Upsert(ctx, record); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("upsert relation vector %s: %w", newVecKey, err), touched...)
	}

	if err := e.finish(ctx, nil, touched...); err != nil {
		return nil, err
	}

	e.log.Info("relation updated",
		zap.String("op_id", opID),
		zap.String("src", src),
		zap.String("tgt", tgt),
		zap.String("vector_key", newVecKey),
		zap.Bool("vector_key_moved", oldVecKey != newVecKey),
	)
	return merged, nil
}
