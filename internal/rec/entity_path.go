package rec

import "strings"

// EntityPath is a hierarchical name such as "world/camera". Paths are only
// normalized: surrounding and repeated separators are dropped.
type EntityPath struct {
	parts []string
}

// ParseEntityPath parses a "/"-separated path.
func ParseEntityPath(s string) EntityPath {
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return EntityPath{parts: parts}
}

// NewEntityPath builds a path from its parts. Empty parts are skipped.
func NewEntityPath(parts ...string) EntityPath {
	return ParseEntityPath(strings.Join(parts, "/"))
}

// String returns the path in its canonical "/a/b" form.
func (p EntityPath) String() string {
	return "/" + strings.Join(p.parts, "/")
}

// Parts returns a copy of the path components.
func (p EntityPath) Parts() []string {
	return append([]string(nil), p.parts...)
}

// IsRoot reports whether the path has no components.
func (p EntityPath) IsRoot() bool {
	return len(p.parts) == 0
}

// Parent returns the enclosing path. The parent of the root is the root.
func (p EntityPath) Parent() EntityPath {
	if len(p.parts) == 0 {
		return p
	}
	return EntityPath{parts: p.parts[:len(p.parts)-1:len(p.parts)-1]}
}

// Join appends a child path.
func (p EntityPath) Join(child string) EntityPath {
	c := ParseEntityPath(child)
	parts := make([]string, 0, len(p.parts)+len(c.parts))
	parts = append(parts, p.parts...)
	return EntityPath{parts: append(parts, c.parts...)}
}
