// Package taskindex builds a flat, resolvable index over a project's
// hierarchical task tree: Group nodes recurse into dotted child paths,
// Sequence nodes keep their children's positional identity, and every
// task gets a canonical TaskPath regardless of which `:`/`.` spelling a
// caller used to name it. The underlying idea — canonicalize a delimited
// name into one stable form, strip a marker prefix for display while
// keeping the original for lookups — generalizes a two-segment
// package#task id scheme to an arbitrarily deep dotted path.
package taskindex

import (
	"fmt"
	"strings"
)

// TaskPath is a non-empty sequence of validated path segments.
type TaskPath []string

// ParseTaskPath replaces ':' with '.' and splits on '.'. Each resulting
// segment must be non-empty and must not itself contain '.' or ':'.
func ParseTaskPath(raw string) (TaskPath, error) {
	normalized := strings.ReplaceAll(raw, ":", ".")
	segments := strings.Split(normalized, ".")
	path := make(TaskPath, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("taskindex: empty segment in %q", raw)
		}
		if strings.ContainsAny(seg, ".:") {
			return nil, fmt.Errorf("taskindex: invalid segment %q in %q", seg, raw)
		}
		path = append(path, seg)
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("taskindex: empty task path")
	}
	return path, nil
}

// Canonical returns the dot-joined canonical form.
func (p TaskPath) Canonical() string {
	return strings.Join(p, ".")
}

// Child returns a new path with name appended.
func (p TaskPath) Child(name string) TaskPath {
	child := make(TaskPath, len(p)+1)
	copy(child, p)
	child[len(p)] = name
	return child
}

// Parent returns the path without its final segment, and false if p has
// only one segment.
func (p TaskPath) Parent() (TaskPath, bool) {
	if len(p) <= 1 {
		return nil, false
	}
	return p[:len(p)-1], true
}
