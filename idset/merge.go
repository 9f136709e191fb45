package idset

import (
	"iter"
	"slices"
)

// lowerBound returns the index of the first element of a >= v.
func lowerBound(a []ID, v ID) int {
	i, _ := slices.BinarySearch(a, v)
	return i
}

// mergeInsert merges the ascending, duplicate-free src into dst, returning
// the new slice and the number of elements added. Runs of src values that
// fall entirely below the current dst element are located by binary search
// and spliced in as a block; runs of dst values below the current src
// element are skipped the same way, keeping the merge O(n+m) amortized.
func mergeInsert(dst, src []ID) ([]ID, int) {
	if len(src) == 0 {
		return dst, 0
	}
	if len(dst) == 0 {
		return slices.Clone(src), len(src)
	}

	var n, d int
	for s := 0; s < len(src); {
		if d == len(dst) {
			n += len(src) - s
			dst = append(dst, src[s:]...)
			break
		}
		switch {
		case src[s] == dst[d]:
			s++
			d++
		case src[s] < dst[d]:
			s2 := s + 1 + lowerBound(src[s+1:], dst[d])
			dst = slices.Insert(dst, d, src[s:s2]...)
			n += s2 - s
			d += s2 - s // d stays on the element the run was spliced before
			s = s2
		default: // src[s] > dst[d]
			d += 1 + lowerBound(dst[d+1:], src[s])
		}
	}
	return dst, n
}

// mergeErase removes from dst every element present in the ascending,
// duplicate-free src, deleting equal runs as a block.
func mergeErase(dst, src []ID) ([]ID, int) {
	var n, d int
	for s := 0; s < len(src) && d < len(dst); {
		switch {
		case src[s] == dst[d]:
			d2 := d
			for s < len(src) && d2 < len(dst) && src[s] == dst[d2] {
				s++
				d2++
			}
			n += d2 - d
			dst = slices.Delete(dst, d, d2)
		case src[s] < dst[d]:
			s += lowerBound(src[s:], dst[d])
		default: // src[s] > dst[d]
			d += lowerBound(dst[d:], src[s])
		}
	}
	return dst, n
}

// mergeIntersect removes from dst every element absent from the ascending,
// duplicate-free src, returning the new slice and the number removed.
func mergeIntersect(dst, src []ID) ([]ID, int) {
	var n, d int
	for s := 0; s < len(src) && d < len(dst); {
		switch {
		case src[s] == dst[d]:
			s++
			d++
		case src[s] < dst[d]:
			s += lowerBound(src[s:], dst[d])
		default: // src[s] > dst[d]
			d2 := d + lowerBound(dst[d:], src[s])
			n += d2 - d
			dst = slices.Delete(dst, d, d2)
		}
	}
	if d < len(dst) {
		n += len(dst) - d
		dst = dst[:d]
	}
	return dst, n
}

// mergeSymmetricDifference deletes equal runs from dst and splices in the
// src-only runs, leaving dst holding the elements present in exactly one
// of the two inputs.
func mergeSymmetricDifference(dst, src []ID) []ID {
	d := 0
	for s := 0; s < len(src); {
		if d == len(dst) {
			dst = append(dst, src[s:]...)
			break
		}
		switch {
		case src[s] == dst[d]:
			d2 := d
			for s < len(src) && d2 < len(dst) && src[s] == dst[d2] {
				s++
				d2++
			}
			dst = slices.Delete(dst, d, d2)
		case src[s] < dst[d]:
			s2 := s + 1 + lowerBound(src[s+1:], dst[d])
			dst = slices.Insert(dst, d, src[s:s2]...)
			d += s2 - s
			s = s2
		default: // src[s] > dst[d]
			d += 1 + lowerBound(dst[d+1:], src[s])
		}
	}
	return dst
}

// idStream pulls ascending ids from a source that can only be read
// forwards, such as a query result column.
type idStream func() (ID, bool)

// intersectStream is mergeIntersect over a forward-only ascending source.
func (b *body) intersectStream(next idStream) int {
	if len(b.items) == 0 {
		return 0
	}
	v, ok := next()
	if !ok {
		n := len(b.items)
		b.items = b.items[:0]
		return n
	}

	var n, d int
	for ok && d < len(b.items) {
		switch {
		case v == b.items[d]:
			v, ok = next()
			d++
		case v < b.items[d]:
			for ok && v < b.items[d] {
				v, ok = next()
			}
		default: // v > b.items[d]
			d2 := d + lowerBound(b.items[d:], v)
			n += d2 - d
			b.items = slices.Delete(b.items, d, d2)
		}
	}
	if d < len(b.items) {
		n += len(b.items) - d
		b.items = b.items[:d]
	}
	return n
}

// symmetricDifferenceStream is mergeSymmetricDifference over a
// forward-only ascending source. Unlike the Set-to-Set form it tolerates
// duplicate consecutive source values, since query results deduplicate
// only when the caller asks for DISTINCT.
func (b *body) symmetricDifferenceStream(next idStream) {
	d := 0
	v, ok := next()
	for ok {
		if d == len(b.items) {
			for ok {
				if n := len(b.items); n == 0 || b.items[n-1] != v {
					b.items = append(b.items, v)
				}
				v, ok = next()
			}
			break
		}
		switch {
		case v == b.items[d]:
			d2 := d
			for {
				d2++
				prev := v
				for ok && v == prev { // skip duplicate source values
					v, ok = next()
				}
				if !ok || d2 == len(b.items) || v != b.items[d2] {
					break
				}
			}
			b.items = slices.Delete(b.items, d, d2)
		case v < b.items[d]:
			b.items = slices.Insert(b.items, d, v)
			d++
			prev := v
			for ok && v == prev { // skip duplicate source values
				v, ok = next()
			}
		default: // v > b.items[d]
			d += 1 + lowerBound(b.items[d+1:], v)
		}
	}
}

// InsertSet merges other's elements into s, reporting how many were
// added. Inserting a Set into itself is a no-op.
func (s *Set) InsertSet(other *Set) int {
	if s.body == other.body || other.IsEmpty() {
		return 0
	}
	if s.IsEmpty() {
		s.body.items = slices.Clone(other.body.items)
		return len(s.body.items)
	}
	var n int
	s.body.items, n = mergeInsert(s.body.items, other.body.items)
	return n
}

// InsertAll adds the given ids, reporting how many were actually added.
// Order and duplication are irrelevant.
func (s *Set) InsertAll(ids ...ID) int {
	n := 0
	for _, id := range ids {
		if _, inserted := s.body.insert(id); inserted {
			n++
		}
	}
	return n
}

// InsertSeq adds the ids produced by seq, reporting how many were
// actually added. Order and duplication are irrelevant.
func (s *Set) InsertSeq(seq iter.Seq[ID]) int {
	n := 0
	for id := range seq {
		if _, inserted := s.body.insert(id); inserted {
			n++
		}
	}
	return n
}

// EraseSet removes other's elements from s, reporting how many were
// removed. Erasing a Set from itself clears it.
func (s *Set) EraseSet(other *Set) int {
	if s.body == other.body {
		n := s.Len()
		s.Clear()
		return n
	}
	if s.IsEmpty() || other.IsEmpty() {
		return 0
	}
	var n int
	s.body.items, n = mergeErase(s.body.items, other.body.items)
	return n
}

// EraseAll removes the given ids, reporting how many were actually
// removed. Order and duplication are irrelevant.
func (s *Set) EraseAll(ids ...ID) int {
	n := 0
	for _, id := range ids {
		n += s.body.erase(id)
	}
	return n
}

// EraseSeq removes the ids produced by seq, reporting how many were
// actually removed.
func (s *Set) EraseSeq(seq iter.Seq[ID]) int {
	n := 0
	for id := range seq {
		n += s.body.erase(id)
	}
	return n
}

// IntersectSet removes every element of s not present in other, reporting
// how many were removed. Intersecting a Set with itself is a no-op;
// intersecting with an empty Set clears s.
func (s *Set) IntersectSet(other *Set) int {
	if s.IsEmpty() || s.body == other.body {
		return 0
	}
	if other.IsEmpty() {
		n := s.Len()
		s.Clear()
		return n
	}
	var n int
	s.body.items, n = mergeIntersect(s.body.items, other.body.items)
	return n
}

// IntersectAll keeps only the elements of s listed in ids, reporting how
// many were removed. Order and duplication of ids are irrelevant.
func (s *Set) IntersectAll(ids ...ID) int {
	return s.IntersectSet(NewWithIDs(ids...))
}

// IntersectSeq keeps only the elements of s produced by seq, reporting
// how many were removed.
func (s *Set) IntersectSeq(seq iter.Seq[ID]) int {
	tmp := New()
	tmp.InsertSeq(seq)
	return s.IntersectSet(tmp)
}

// SymmetricDifferenceSet leaves s holding the elements present in exactly
// one of s and other. Applying a Set to itself clears it.
func (s *Set) SymmetricDifferenceSet(other *Set) {
	if s.body == other.body {
		s.Clear()
		return
	}
	if other.IsEmpty() {
		return
	}
	s.body.items = mergeSymmetricDifference(s.body.items, other.body.items)
}

// SymmetricDifferenceAll applies SymmetricDifferenceSet with the given
// ids. Order and duplication of ids are irrelevant.
func (s *Set) SymmetricDifferenceAll(ids ...ID) {
	s.SymmetricDifferenceSet(NewWithIDs(ids...))
}

// SymmetricDifferenceSeq applies SymmetricDifferenceSet with the ids
// produced by seq.
func (s *Set) SymmetricDifferenceSeq(seq iter.Seq[ID]) {
	tmp := New()
	tmp.InsertSeq(seq)
	s.SymmetricDifferenceSet(tmp)
}
