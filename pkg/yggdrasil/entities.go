package yggdrasil

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/ident"
	"github.com/orneryd/yggdrasil/pkg/vector"
)

// UpdateEntity merges a partial attribute map into an existing entity and
// re-projects it into the entity vector index.
//
// The entity must already exist; absence is a routine outcome reported as
// ErrEntityNotFound, not a fault. Merge semantics are a shallow overlay:
// incoming keys win, omitted keys keep their prior values. The merged
// attribute map is returned.
//
// The entity's vector key is a hash of the normalized name + description, so
// every casing of the same name maps to one vector record and a description
// change moves that record to a new key; the prior key is deleted in the same
// operation to avoid orphaned index entries.
func (e *Engine) UpdateEntity(ctx context.Context, name string, updates graph.Attrs) (graph.Attrs, error) {
	opID := newOpID()
	key := NormalizeEntityName(name)

	exists, err := e.graph.HasNode(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check entity %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}

	// The node can vanish between the existence check and the fetch; treat
	// a missing or empty node as an empty attribute map rather than failing.
	current, err := e.graph.GetNode(ctx, key)
	if err != nil && !errorsIsNotFound(err) {
		return nil, fmt.Errorf("fetch entity %s: %w", key, err)
	}
	if current == nil {
		current = graph.Attrs{}
	}

	merged := overlay(current, updates)

	// A store counts as touched from the moment a write to it is attempted;
	// finalize runs over the touched set on every exit path below.
	touched := []finalizer{e.graph}
	if err := e.graph.UpsertNode(ctx, key, merged); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("upsert entity %s: %w", key, err), touched...)
	}

	// Vector identity derives from the normalized graph key, never the raw
	// caller spelling; otherwise two casings of one entity would address the
	// same node but different index records.
	oldVecKey := ident.EntityKey(key, attrString(current, "description"))
	newVecKey := ident.EntityKey(key, attrString(merged, "description"))

	record := map[string]vector.Record{
		newVecKey: {
			Content:  key + attrString(merged, "description"),
			Metadata: map[string]string{"entity_name": key},
		},
	}
	if err := e.embedRecords(ctx, record); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("embed entity %s: %w", key, err), touched...)
	}

	touched = append(touched, e.entities)

	// Description changed: the content hash moved, so drop the stale key
	// before writing the new one.
	if oldVecKey != newVecKey {
		if err := e.entities.Delete(ctx, []string{oldVecKey}); err != nil {
			return nil, e.finish(ctx, fmt.Errorf("delete stale entity vector %s: %w", oldVecKey, err), touched...)
		}
	}

	if err := e.entities.Upsert(ctx, record); err != nil {
		return nil, e.finish(ctx, fmt.Errorf("upsert entity vector %s: %w", newVecKey, err), touched...)
	}

	if err := e.finish(ctx, nil, touched...); err != nil {
		return nil, err
	}

	e.log.Info("entity updated",
		zap.String("op_id", opID),
		zap.String("entity", key),
		zap.String("vector_key", newVecKey),
		zap.Bool("vector_key_moved", oldVecKey != newVecKey),
	)
	return merged, nil
}

// DeleteEntity removes an entity, every relation incident to it, and the
// corresponding records in both vector indexes, so the indexes never
// reference a dangling entity. Absence is reported as ErrEntityNotFound.
func (e *Engine) DeleteEntity(ctx context.Context, name string) error {
	opID := newOpID()
	key := NormalizeEntityName(name)

	exists, err := e.graph.HasNode(ctx, key)
	if err != nil {
		return fmt.Errorf("check entity %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, name)
	}

	attrs, removed, err := e.graph.DeleteNodeCascade(ctx, key)
	if err != nil {
		if errorsIsNotFound(err) {
			// Raced with another deleter; the entity is gone either way.
			return fmt.Errorf("%w: %s", ErrEntityNotFound, name)
		}
		return e.finish(ctx, fmt.Errorf("cascade delete %s: %w", key, err), e.graph)
	}
	touched := []finalizer{e.graph}

	entKey := ident.EntityKey(key, attrString(attrs, "description"))
	touched = append(touched, e.entities)
	if err := e.entities.Delete(ctx, []string{entKey}); err != nil {
		return e.finish(ctx, fmt.Errorf("delete entity vector %s: %w", entKey, err), touched...)
	}

	if len(removed) > 0 {
		relKeys := make([]string, len(removed))
		for i, edge := range removed {
			relKeys[i] = ident.RelationKey(
				attrString(edge.Attrs, "keywords"),
				edge.Src,
				edge.Tgt,
				attrString(edge.Attrs, "description"),
			)
		}
		touched = append(touched, e.relations)
		if err := e.relations.Delete(ctx, relKeys); err != nil {
			return e.finish(ctx, fmt.Errorf("delete relation vectors for %s: %w", key, err), touched...)
		}
	}

	if err := e.finish(ctx, nil, touched...); err != nil {
		return err
	}

	e.log.Info("entity deleted",
		zap.String("op_id", opID),
		zap.String("entity", key),
		zap.Int("relations_removed", len(removed)),
	)
	return nil
}
