// Package fingerprint provides the digest primitives every other component
// builds on: canonical-JSON hashing, directory keys, and truncated hex
// digests. Same shape as a monorepo task runner's content-hash helpers
// (hash a file, hash a directory key), swapped to SHA-256 for the explicit
// digest algorithm cuenv's data model calls for.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/cuenv/cuenv/internal/turbopath"
)

// Sha256CanonicalJSON returns the hex-encoded SHA-256 digest of the
// canonical JSON serialization of value. Canonical means: object keys are
// sorted, and the encoding is otherwise what encoding/json produces for the
// canonicalized value. This makes the digest independent of map insertion
// order, satisfying the cache-key-envelope determinism property (§8:
// key(E) = key(permute_map_order(E))).
func Sha256CanonicalJSON(value interface{}) (string, error) {
	digest, _, err := Sha256CanonicalJSONWithBytes(value)
	return digest, err
}

// Sha256CanonicalJSONWithBytes is Sha256CanonicalJSON plus the canonical
// JSON bytes the digest was computed from, for callers that need to persist
// the exact serialization a cache key was derived from (cache envelopes).
func Sha256CanonicalJSONWithBytes(value interface{}) (digest string, canonicalJSON []byte, err error) {
	canon, err := canonicalize(value)
	if err != nil {
		return "", nil, err
	}
	bytes, err := json.Marshal(canon)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(bytes)
	return hex.EncodeToString(sum[:]), bytes, nil
}

// canonicalize walks an arbitrary JSON-able value and converts every map
// into a canonicalMap, a type whose MarshalJSON always emits keys in sorted
// order. encoding/json already sorts map[string]T keys, but maps nested
// inside map[string]interface{} or reached via reflection over structs with
// map fields are not guaranteed to be stable across Go versions for every
// key type, so we normalize explicitly rather than depend on that
// incidental behavior.
func canonicalize(value interface{}) (interface{}, error) {
	// Round-trip through JSON first so struct values (with their own field
	// tags, omitempty, etc.) become plain maps/slices we can walk uniformly.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return canonicalizeGeneric(generic), nil
}

func canonicalizeGeneric(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cm := make(canonicalMap, 0, len(keys))
		for _, k := range keys {
			cm = append(cm, canonicalEntry{Key: k, Value: canonicalizeGeneric(v[k])})
		}
		return cm
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = canonicalizeGeneric(item)
		}
		return out
	default:
		return v
	}
}

type canonicalEntry struct {
	Key   string
	Value interface{}
}

// canonicalMap marshals as a JSON object with keys emitted in the order they
// were appended (which canonicalizeGeneric always populates pre-sorted).
type canonicalMap []canonicalEntry

// MarshalJSON implements json.Marshaler by hand-writing the object so that
// key order is exactly the (already sorted) append order, which
// map[string]interface{} cannot guarantee through the standard encoder once
// a value has passed through an intermediate representation.
func (cm canonicalMap) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, entry := range cm {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		valBytes, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// DirectoryKey canonicalizes path (resolving symlinks if it exists) and
// returns the truncated SHA-256 digest of the canonical string. This is the
// key under which state, markers, and approval records are filed.
func DirectoryKey(path turbopath.AbsolutePath) (string, error) {
	canon := path
	if path.Exists() {
		resolved, err := path.EvalSymlinks()
		if err != nil {
			return "", err
		}
		canon = resolved
	}
	sum := sha256.Sum256([]byte(canon.ToString()))
	return TruncateHex(hex.EncodeToString(sum[:]), 16), nil
}

// TruncateHex truncates a full hex digest to n characters.
func TruncateHex(fullHex string, n int) string {
	if len(fullHex) <= n {
		return fullHex
	}
	return fullHex[:n]
}

// Sha256File returns the hex SHA-256 digest and size in bytes of the file at
// path.
func Sha256File(path string) (digest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
