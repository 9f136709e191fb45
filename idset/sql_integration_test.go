package idset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/walres/wrsql/engine"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func queryIDs(t *testing.T, s *Set, query string, args ...any) []ID {
	t.Helper()
	rows, err := s.DB().Query(query, args...)
	if err != nil {
		t.Fatalf("query %q: %v", query, err)
	}
	defer rows.Close()
	var out []ID
	for rows.Next() {
		var id ID
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func idsEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSQLSelectScan(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db, 3, 1, 2)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	got := queryIDs(t, s, fmt.Sprintf("SELECT id FROM %s", s))
	if !idsEqual(got, []ID{1, 2, 3}) {
		t.Fatalf("scan = %v, want [1 2 3]", got)
	}

	// Ascending ORDER BY rides on storage order; descending goes through
	// the engine's sorter. Both must come back right.
	got = queryIDs(t, s, fmt.Sprintf("SELECT id FROM %s ORDER BY id", s))
	if !idsEqual(got, []ID{1, 2, 3}) {
		t.Fatalf("order by asc = %v", got)
	}
	got = queryIDs(t, s, fmt.Sprintf("SELECT id FROM %s ORDER BY id DESC", s))
	if !idsEqual(got, []ID{3, 2, 1}) {
		t.Fatalf("order by desc = %v", got)
	}
}

func TestSQLPredicates(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db, 1, 2, 3, 4, 5)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	tests := []struct {
		where string
		args  []any
		want  []ID
	}{
		{"id = ?", []any{3}, []ID{3}},
		{"id = ?", []any{99}, nil},
		{"id > ?", []any{3}, []ID{4, 5}},
		{"id >= ? AND id < ?", []any{2, 5}, []ID{2, 3, 4}},
		{"rowid = ?", []any{4}, []ID{4}},
	}
	for _, tc := range tests {
		q := fmt.Sprintf("SELECT id FROM %s WHERE %s", s, tc.where)
		got := queryIDs(t, s, q, tc.args...)
		if !idsEqual(got, tc.want) {
			t.Fatalf("%q = %v, want %v", q, got, tc.want)
		}
	}
}

func TestSQLMutations(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db, 10, 20)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	if _, err := db.Exec(fmt.Sprintf("INSERT INTO %s (id) VALUES (?), (?)", s), 5, 15); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := s.Values(); !idsEqual(got, []ID{5, 10, 15, 20}) {
		t.Fatalf("after insert: %v", got)
	}

	if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id < ?", s), 10); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := s.Values(); !idsEqual(got, []ID{10, 15, 20}) {
		t.Fatalf("after delete: %v", got)
	}

	if _, err := db.Exec(fmt.Sprintf("UPDATE %s SET id = ? WHERE id = ?", s), 25, 15); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := s.Values(); !idsEqual(got, []ID{10, 20, 25}) {
		t.Fatalf("after update: %v", got)
	}
}

// A duplicate id fails the statement and leaves the set unchanged. The
// driver reports table write errors as plain statement errors, not
// constraint result codes, so OR REPLACE and OR IGNORE cannot soften the
// conflict: every variant fails the same way.
func TestSQLInsertDuplicate(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db, 1, 2)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	for _, form := range []string{
		"INSERT INTO %s (id) VALUES (?)",
		"INSERT OR REPLACE INTO %s (id) VALUES (?)",
		"INSERT OR IGNORE INTO %s (id) VALUES (?)",
	} {
		if _, err := db.Exec(fmt.Sprintf(form, s), 2); err == nil {
			t.Fatalf("%q on a duplicate id must fail", form)
		}
		if got := s.Values(); !idsEqual(got, []ID{1, 2}) {
			t.Fatalf("set changed by failed insert: %v", got)
		}
	}
}

func TestSQLInsertNullID(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db, 1)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	if _, err := db.Exec(fmt.Sprintf("INSERT INTO %s (id) VALUES (NULL)", s)); err == nil {
		t.Fatal("NULL id insert must fail")
	}
	if got := s.Values(); !idsEqual(got, []ID{1}) {
		t.Fatalf("set changed by failed insert: %v", got)
	}
}

func TestSQLJoinWithOrdinaryTable(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Exec("CREATE TABLE docs (id INTEGER PRIMARY KEY, title TEXT)"); err != nil {
		t.Fatalf("create docs: %v", err)
	}
	for id, title := range map[int]string{1: "a", 2: "b", 3: "c", 4: "d"} {
		if _, err := db.Exec("INSERT INTO docs (id, title) VALUES (?, ?)", id, title); err != nil {
			t.Fatalf("insert docs: %v", err)
		}
	}
	s, err := NewAttached(db, 2, 4)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	got := queryIDs(t, s, fmt.Sprintf(
		"SELECT d.id FROM docs d JOIN %s m ON d.id = m.id ORDER BY d.id", s))
	if !idsEqual(got, []ID{2, 4}) {
		t.Fatalf("join = %v, want [2 4]", got)
	}
}

func TestSQLFileBackedDatabase(t *testing.T) {
	db, err := engine.Open(filepath.Join(t.TempDir(), "idset.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	s, err := NewAttached(db, 1, 2, 3)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	got := queryIDs(t, s, fmt.Sprintf("SELECT id FROM %s WHERE id >= ?", s), 2)
	if !idsEqual(got, []ID{2, 3}) {
		t.Fatalf("scan = %v, want [2 3]", got)
	}
}

func createNums(t *testing.T, s *Set, ids ...ID) {
	t.Helper()
	if _, err := s.DB().Exec("CREATE TABLE IF NOT EXISTS nums (n INTEGER)"); err != nil {
		t.Fatalf("create nums: %v", err)
	}
	for _, id := range ids {
		if _, err := s.DB().Exec("INSERT INTO nums (n) VALUES (?)", id); err != nil {
			t.Fatalf("insert nums: %v", err)
		}
	}
}

func TestInsertSQL(t *testing.T) {
	ctx := testContext(t)
	db := openTestDB(t)
	s, err := NewAttached(db, 5)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	createNums(t, s, 9, 1, 5, 9)

	n, err := s.InsertSQL(ctx, "SELECT n FROM nums")
	if err != nil {
		t.Fatalf("InsertSQL: %v", err)
	}
	if n != 2 {
		t.Fatalf("added = %d, want 2", n)
	}
	if got := s.Values(); !idsEqual(got, []ID{1, 5, 9}) {
		t.Fatalf("values = %v", got)
	}
}

func TestEraseSQL(t *testing.T) {
	ctx := testContext(t)
	db := openTestDB(t)
	s, err := NewAttached(db, 1, 2, 3, 4)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	createNums(t, s, 2, 4, 99)

	n, err := s.EraseSQL(ctx, "SELECT n FROM nums WHERE n < ?", 50)
	if err != nil {
		t.Fatalf("EraseSQL: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}
	if got := s.Values(); !idsEqual(got, []ID{1, 3}) {
		t.Fatalf("values = %v", got)
	}
}

func TestIntersectSQL(t *testing.T) {
	ctx := testContext(t)
	db := openTestDB(t)
	s, err := NewAttached(db)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	for id := ID(0); id <= 12; id++ {
		s.Insert(id)
	}
	createNums(t, s, 8, 2, 10, 4, 6)

	n, err := s.IntersectSQL(ctx, "SELECT n FROM nums ORDER BY n")
	if err != nil {
		t.Fatalf("IntersectSQL: %v", err)
	}
	if n != 8 {
		t.Fatalf("removed = %d, want 8", n)
	}
	if got := s.Values(); !idsEqual(got, []ID{2, 4, 6, 8, 10}) {
		t.Fatalf("values = %v", got)
	}
}

func TestIntersectSQLEmptySkipsQuery(t *testing.T) {
	ctx := testContext(t)
	db := openTestDB(t)
	s, err := NewAttached(db)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	// The query is never run, so even a bogus one succeeds.
	n, err := s.IntersectSQL(ctx, "SELECT no_such_column FROM no_such_table")
	if err != nil {
		t.Fatalf("IntersectSQL on empty set: %v", err)
	}
	if n != 0 {
		t.Fatalf("removed = %d, want 0", n)
	}
}

func TestSymmetricDifferenceSQL(t *testing.T) {
	ctx := testContext(t)
	db := openTestDB(t)
	s, err := NewAttached(db, 1, 2, 5, 9)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	createNums(t, s, 2, 3, 9, 11)

	if err := s.SymmetricDifferenceSQL(ctx, "SELECT n FROM nums ORDER BY n"); err != nil {
		t.Fatalf("SymmetricDifferenceSQL: %v", err)
	}
	if got := s.Values(); !idsEqual(got, []ID{1, 3, 5, 11}) {
		t.Fatalf("values = %v", got)
	}
}

func TestSQLFormsRequireAttachment(t *testing.T) {
	ctx := testContext(t)
	s := NewWithIDs(1)
	if _, err := s.InsertSQL(ctx, "SELECT 1"); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("InsertSQL err = %v, want ErrNotAttached", err)
	}
	if _, err := s.EraseSQL(ctx, "SELECT 1"); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("EraseSQL err = %v, want ErrNotAttached", err)
	}
	if _, err := s.IntersectSQL(ctx, "SELECT 1"); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("IntersectSQL err = %v, want ErrNotAttached", err)
	}
	if err := s.SymmetricDifferenceSQL(ctx, "SELECT 1"); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("SymmetricDifferenceSQL err = %v, want ErrNotAttached", err)
	}
}

func TestRowsFormsSecondColumn(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()
	createNums(t, s, 7, 3)

	rows, err := db.Query("SELECT 'x', n FROM nums")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	n, err := s.InsertRows(rows, 1)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 2 {
		t.Fatalf("added = %d, want 2", n)
	}
	if got := s.Values(); !idsEqual(got, []ID{3, 7}) {
		t.Fatalf("values = %v", got)
	}
}

func TestRowsFormsColumnOutOfRange(t *testing.T) {
	db := openTestDB(t)
	s, err := NewAttached(db)
	if err != nil {
		t.Fatalf("NewAttached: %v", err)
	}
	defer s.Close()

	rows, err := db.Query("SELECT 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	if _, err := s.InsertRows(rows, 3); err == nil {
		t.Fatal("out-of-range column must fail")
	}
}
