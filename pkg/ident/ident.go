// Package ident derives stable content-addressed keys for knowledge-base
// records.
//
// Every entity and relation stored in a vector index is keyed by a digest of
// its canonical content string, prefixed by its record class. Because the key
// is a pure function of the content, re-upserting an unchanged record lands on
// the same key and overwrites in place instead of duplicating, which is what
// makes vector writes idempotent.
//
// Key format: <prefix><hex digest truncated to 32 chars>, e.g.
//
//	ent-9f3c2ab14d7e85f0c1b2a3d4e5f60718
//	rel-0a1b2c3d4e5f60718293a4b5c6d7e8f9
package ident

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Record class prefixes. Keys from different classes never collide even when
// their raw content matches, because the prefix is part of the key.
const (
	PrefixEntity   = "ent-"
	PrefixRelation = "rel-"
)

// digestHexLen is the truncated hex width of the digest portion of a key.
const digestHexLen = 32

// Hash returns the content-addressed key for the given record class prefix
// and content parts. The parts are concatenated in order with no separator;
// callers are responsible for passing them in a canonical order.
//
// Deterministic and side-effect free: identical input always yields an
// identical key, and changing any input byte changes the key with
// overwhelming probability (BLAKE2b-256, truncated).
func Hash(prefix string, parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "")))
	return prefix + hex.EncodeToString(sum[:])[:digestHexLen]
}

// EntityKey returns the vector-index key for an entity. The canonical content
// string is the normalized graph name followed by the description; callers
// must normalize the name first so every spelling of an entity maps to one
// key.
func EntityKey(name, description string) string {
	return Hash(PrefixEntity, name, description)
}

// RelationKey returns the vector-index key for a relation. The canonical
// content string is keywords + source + target + description, with source and
// target in edge order so that (A,B) and (B,A) produce distinct keys.
func RelationKey(keywords, src, tgt, description string) string {
	return Hash(PrefixRelation, keywords, src, tgt, description)
}
