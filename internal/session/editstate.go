package session

import (
	"fmt"
	"maps"
)

// FieldKey addresses one editable field of one set.
type FieldKey struct {
	Exercise int
	Set      int
	Field    Field
}

func (k FieldKey) String() string {
	return fmt.Sprintf("%d/%d/%s", k.Exercise, k.Set, k.Field)
}

// Key is shorthand for constructing a FieldKey.
func Key(exerciseIdx, setIdx int, f Field) FieldKey {
	return FieldKey{Exercise: exerciseIdx, Set: setIdx, Field: f}
}

// DirtyFields records fields the user has explicitly committed. Marks are
// never removed; the whole set is discarded when the session is replaced by a
// fresh load or a cancel.
type DirtyFields map[FieldKey]bool

// Mark records k as user-owned.
func (d DirtyFields) Mark(k FieldKey) { d[k] = true }

// IsDirty reports whether k has been marked. A nil DirtyFields is empty.
func (d DirtyFields) IsDirty(k FieldKey) bool { return d[k] }

// Clone returns an independent copy.
func (d DirtyFields) Clone() DirtyFields {
	if d == nil {
		return DirtyFields{}
	}
	return maps.Clone(d)
}

// Buffers holds raw, possibly unparseable input currently being typed.
type Buffers map[FieldKey]string

// Clone returns an independent copy.
func (b Buffers) Clone() Buffers {
	if b == nil {
		return Buffers{}
	}
	return maps.Clone(b)
}

// FieldErrors holds per-field validation messages for display.
type FieldErrors map[FieldKey]string

// Clone returns an independent copy.
func (e FieldErrors) Clone() FieldErrors {
	if e == nil {
		return FieldErrors{}
	}
	return maps.Clone(e)
}

// WithoutSet returns a copy of m with the keys of the deleted set removed and
// the keys of later sets in the same exercise shifted down by one, keeping
// marks attached to the sets they were made on.
func WithoutSet[M ~map[FieldKey]V, V any](m M, exerciseIdx, setIdx int) M {
	out := make(M, len(m))
	for k, v := range m {
		switch {
		case k.Exercise != exerciseIdx || k.Set < setIdx:
			out[k] = v
		case k.Set == setIdx:
		default:
			k.Set--
			out[k] = v
		}
	}
	return out
}
