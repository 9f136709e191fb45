package idset

import (
	"database/sql"
	"errors"
	"iter"
	"slices"
)

// ID is the element type stored by a Set, matching SQLite's 64-bit
// integer rowid domain.
type ID = int64

// ErrNotAttached is returned by operations that need a live database
// attachment (the *SQL convenience forms) when the Set has none.
var ErrNotAttached = errors.New("idset: set not attached to a database")

// Set is a handle to a sorted, duplicate-free collection of IDs.
//
// The handle owns a heap-allocated body holding the storage, the optional
// database attachment and the serial that anchors the Set's SQL table
// name. Swap exchanges two bodies' contents while leaving each body (and
// therefore each table name) in place, so statements prepared against
// either name keep working across a Swap.
//
// The zero value is not usable; construct Sets with New, NewWithIDs or
// NewAttached.
type Set struct {
	body *body
}

// body is the boxed state behind a Set handle. It is what the virtual
// table module binds to, so its identity must outlive content copies and
// swaps of the owning handle.
type body struct {
	serial uint64
	items  []ID
	db     *sql.DB
}

// New returns an empty, unattached Set.
func New() *Set { return &Set{body: newBody()} }

// NewWithIDs returns an unattached Set holding the given ids. Order and
// duplication of the arguments are irrelevant.
func NewWithIDs(ids ...ID) *Set {
	s := New()
	s.InsertAll(ids...)
	return s
}

// NewAttached returns a Set attached to db and holding the given ids.
func NewAttached(db *sql.DB, ids ...ID) (*Set, error) {
	s := New()
	if err := s.Attach(db); err != nil {
		return nil, err
	}
	s.InsertAll(ids...)
	return s, nil
}

// Close detaches the Set (dropping its table if the connection still
// works) and releases its table-name registration. The Set must not be
// used afterwards.
func (s *Set) Close() error { return s.Detach() }

func (b *body) insert(id ID) (int, bool) {
	i, found := slices.BinarySearch(b.items, id)
	if found {
		return i, false
	}
	b.items = slices.Insert(b.items, i, id)
	return i, true
}

func (b *body) erase(id ID) int {
	i, found := slices.BinarySearch(b.items, id)
	if !found {
		return 0
	}
	b.items = slices.Delete(b.items, i, i+1)
	return 1
}

func (b *body) contains(id ID) bool {
	_, found := slices.BinarySearch(b.items, id)
	return found
}

// Insert adds a single id. It reports the id's position and whether it
// was actually inserted (false when already present).
func (s *Set) Insert(id ID) (pos int, inserted bool) { return s.body.insert(id) }

// Erase removes a single id, reporting the number of elements removed
// (0 or 1).
func (s *Set) Erase(id ID) int { return s.body.erase(id) }

// Contains reports whether id is present.
func (s *Set) Contains(id ID) bool { return s.body.contains(id) }

// Find returns the index of id, or (Len(), false) when absent.
func (s *Set) Find(id ID) (int, bool) {
	i, found := slices.BinarySearch(s.body.items, id)
	if !found {
		return len(s.body.items), false
	}
	return i, true
}

// LowerBound returns the index of the first element >= id.
func (s *Set) LowerBound(id ID) int {
	i, _ := slices.BinarySearch(s.body.items, id)
	return i
}

// UpperBound returns the index of the first element > id.
func (s *Set) UpperBound(id ID) int {
	i, found := slices.BinarySearch(s.body.items, id)
	if found {
		i++
	}
	return i
}

// EqualRange returns the half-open index range [lo, hi) of elements equal
// to id. hi-lo is 0 or 1.
func (s *Set) EqualRange(id ID) (lo, hi int) {
	lo = s.LowerBound(id)
	hi = s.UpperBound(id)
	return lo, hi
}

// At returns the i'th smallest element. It panics when i is out of range,
// like a slice index.
func (s *Set) At(i int) ID { return s.body.items[i] }

// Len returns the number of elements.
func (s *Set) Len() int { return len(s.body.items) }

// IsEmpty reports whether the Set has no elements.
func (s *Set) IsEmpty() bool { return len(s.body.items) == 0 }

// Cap returns the storage capacity.
func (s *Set) Cap() int { return cap(s.body.items) }

// Values returns the elements in ascending order as a fresh slice.
func (s *Set) Values() []ID { return slices.Clone(s.body.items) }

// All returns an ascending iterator over the elements. The Set must not
// be mutated during iteration.
func (s *Set) All() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for _, id := range s.body.items {
			if !yield(id) {
				return
			}
		}
	}
}

// Backward returns a descending iterator over the elements. The Set must
// not be mutated during iteration.
func (s *Set) Backward() iter.Seq[ID] {
	return func(yield func(ID) bool) {
		for i := len(s.body.items) - 1; i >= 0; i-- {
			if !yield(s.body.items[i]) {
				return
			}
		}
	}
}

// Clear removes all elements. Attachment state is unaffected.
func (s *Set) Clear() { s.body.items = s.body.items[:0] }

// Reserve grows the storage capacity to at least n elements.
func (s *Set) Reserve(n int) {
	if n > cap(s.body.items) {
		s.body.items = slices.Grow(s.body.items, n-len(s.body.items))
	}
}

// ShrinkToFit releases unused storage capacity.
func (s *Set) ShrinkToFit() { s.body.items = slices.Clip(s.body.items) }

// Equal reports whether a and b hold the same elements. Attachment state
// does not participate in comparisons.
func Equal(a, b *Set) bool {
	return a == b || a.body == b.body || slices.Equal(a.body.items, b.body.items)
}

// Compare orders two Sets lexicographically over their ascending
// contents, returning -1, 0 or 1.
func Compare(a, b *Set) int {
	if a == b || a.body == b.body {
		return 0
	}
	return slices.Compare(a.body.items, b.body.items)
}
