// Package identity derives the stable key that marks two imports of the same
// logical question as the same row.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// delimiter joins discriminants before hashing; it does not occur in the
// referential ids, clause numbers, or normalized question text that feed it.
const delimiter = "|"

// prefix tags the key generation so a future key-format change cannot collide
// with keys already persisted.
const prefix = "q_"

// Key returns the identity key for an ordered tuple of discriminants.
// Identical tuples always produce identical keys, on any process, at any
// time; any change to a discriminant changes the key. Collision resistance,
// not secrecy, is what the digest is for.
func Key(discriminants ...string) string {
	sum := md5.Sum([]byte(strings.Join(discriminants, delimiter)))
	return prefix + hex.EncodeToString(sum[:])
}
