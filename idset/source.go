package idset

import (
	"context"
	"database/sql"
	"fmt"
)

// rowsSource pulls one integer column out of a query result, scanning the
// remaining columns into throwaway destinations.
type rowsSource struct {
	rows *sql.Rows
	dest []any
	id   *ID
	err  error
}

func newRowsSource(rows *sql.Rows, col int) (*rowsSource, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("idset: reading result columns: %w", err)
	}
	if col < 0 || col >= len(cols) {
		return nil, fmt.Errorf("idset: column index %d out of range (result has %d columns)", col, len(cols))
	}
	src := &rowsSource{rows: rows, dest: make([]any, len(cols)), id: new(ID)}
	for i := range src.dest {
		src.dest[i] = new(sql.RawBytes)
	}
	src.dest[col] = src.id
	return src, nil
}

func (r *rowsSource) next() (ID, bool) {
	if r.err != nil {
		return 0, false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		return 0, false
	}
	if err := r.rows.Scan(r.dest...); err != nil {
		r.err = err
		return 0, false
	}
	return *r.id, true
}

// InsertRows adds every value of the col'th column (zero-based) of the
// query result, reporting how many were actually added. Order and
// duplication of the result are irrelevant for insertion.
func (s *Set) InsertRows(rows *sql.Rows, col int) (int, error) {
	src, err := newRowsSource(rows, col)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		id, ok := src.next()
		if !ok {
			break
		}
		if _, inserted := s.body.insert(id); inserted {
			n++
		}
	}
	return n, src.err
}

// EraseRows removes every value of the col'th column of the query result,
// reporting how many were actually removed. Order and duplication of the
// result are irrelevant for erasure by value.
func (s *Set) EraseRows(rows *sql.Rows, col int) (int, error) {
	src, err := newRowsSource(rows, col)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		id, ok := src.next()
		if !ok {
			break
		}
		n += s.body.erase(id)
	}
	return n, src.err
}

// IntersectRows keeps only the elements of s present in the col'th column
// of the query result, reporting how many were removed.
//
// The column must be ascending. This is a trusted precondition: it is
// never validated, and violating it leaves the Set holding an unspecified
// (though still sorted and duplicate-free) subset of values.
func (s *Set) IntersectRows(rows *sql.Rows, col int) (int, error) {
	src, err := newRowsSource(rows, col)
	if err != nil {
		return 0, err
	}
	n := s.body.intersectStream(src.next)
	return n, src.err
}

// SymmetricDifferenceRows leaves s holding the elements present in
// exactly one of s and the col'th column of the query result.
//
// The column must be ascending (duplicates tolerated); like
// IntersectRows this precondition is trusted, not validated.
func (s *Set) SymmetricDifferenceRows(rows *sql.Rows, col int) error {
	src, err := newRowsSource(rows, col)
	if err != nil {
		return err
	}
	s.body.symmetricDifferenceStream(src.next)
	return src.err
}

func (s *Set) querySource(ctx context.Context, op, query string, args []any) (*sql.Rows, error) {
	if s.body.db == nil {
		return nil, fmt.Errorf("idset: %s %s: %w", op, s.SQLName(), ErrNotAttached)
	}
	rows, err := s.body.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("idset: %s %s: %w", op, s.SQLName(), err)
	}
	return rows, nil
}

// InsertSQL runs the query on the attached database and inserts column 0
// of its result, reporting how many elements were added. It fails with
// ErrNotAttached when the Set has no attachment.
func (s *Set) InsertSQL(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := s.querySource(ctx, "InsertSQL", query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return s.InsertRows(rows, 0)
}

// EraseSQL runs the query on the attached database and erases column 0 of
// its result, reporting how many elements were removed.
func (s *Set) EraseSQL(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := s.querySource(ctx, "EraseSQL", query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return s.EraseRows(rows, 0)
}

// IntersectSQL runs the query on the attached database and intersects s
// with column 0 of its result, which must be ascending (see
// IntersectRows). An empty Set short-circuits without touching the
// database.
func (s *Set) IntersectSQL(ctx context.Context, query string, args ...any) (int, error) {
	if s.IsEmpty() {
		return 0, nil
	}
	rows, err := s.querySource(ctx, "IntersectSQL", query, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return s.IntersectRows(rows, 0)
}

// SymmetricDifferenceSQL runs the query on the attached database and
// applies the symmetric difference with column 0 of its result, which
// must be ascending (see SymmetricDifferenceRows).
func (s *Set) SymmetricDifferenceSQL(ctx context.Context, query string, args ...any) error {
	rows, err := s.querySource(ctx, "SymmetricDifferenceSQL", query, args)
	if err != nil {
		return err
	}
	defer rows.Close()
	return s.SymmetricDifferenceRows(rows, 0)
}
