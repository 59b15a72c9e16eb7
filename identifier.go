package vidtex

import (
	"fmt"
	"strings"
)

// DefaultNamespace is used for identifiers parsed without an explicit namespace.
const DefaultNamespace = "vidtex"

// An Identifier names a video or a texture as "namespace:path".
type Identifier struct {
	Namespace string
	Path      string
}

// NewIdentifier creates an identifier, validating both parts.
func NewIdentifier(namespace, path string) (Identifier, error) {
	if !validNamespace(namespace) {
		return Identifier{}, fmt.Errorf("%w: namespace %q", ErrInvalidIdentifier, namespace)
	}
	if !validPath(path) {
		return Identifier{}, fmt.Errorf("%w: path %q", ErrInvalidIdentifier, path)
	}
	return Identifier{Namespace: namespace, Path: path}, nil
}

// MustIdentifier is like [NewIdentifier](), but panics on invalid input.
func MustIdentifier(namespace, path string) Identifier {
	id, err := NewIdentifier(namespace, path)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseIdentifier parses "namespace:path". When the namespace is omitted,
// [DefaultNamespace] is used.
func ParseIdentifier(s string) (Identifier, error) {
	namespace, path, found := strings.Cut(s, ":")
	if !found {
		namespace, path = DefaultNamespace, s
	}
	return NewIdentifier(namespace, path)
}

// String returns the "namespace:path" form.
func (id Identifier) String() string {
	return id.Namespace + ":" + id.Path
}

// IsZero reports whether the identifier is the zero value.
func (id Identifier) IsZero() bool {
	return id.Namespace == "" && id.Path == ""
}

// TextureID returns the texture identifier a player with the given id
// registers its output under. The mapping is stable, so other code can
// reference a player's texture before the player exists.
func TextureID(id Identifier) Identifier {
	return Identifier{
		Namespace: DefaultNamespace,
		Path:      "video/" + id.Namespace + "/" + id.Path,
	}
}

func validNamespace(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func validPath(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '/' && !isIdentRune(r) {
			return false
		}
	}
	return true
}

func isIdentRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
