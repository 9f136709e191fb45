package idset

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // engine bridge; installs the vtab registration hook
	"modernc.org/sqlite/vtab"
)

// Errors returned by the table's SQL mutation entry points. The engine
// bridge reports any error from a virtual-table write as a plain
// statement error, so conflict clauses (OR IGNORE, OR REPLACE) do not
// soften these; every conflicting statement fails.
var (
	ErrNullID      = errors.New("idset: id may not be NULL")
	ErrDuplicateID = errors.New("idset: id not unique")
	ErrRowidChange = errors.New("idset: rowid cannot differ from id")
)

// Module implements vtab.Module for the idset virtual table. Each table
// instance binds to one Set body, resolved through the process-wide
// registry from the serial passed in the CREATE VIRTUAL TABLE argument.
type Module struct{}

// Module registration is driver-global and reaches only connections
// opened after it, so it must precede every connection the program can
// create. Registering at package load guarantees that: connections are
// only opened at run time, after all package initialization.
func init() {
	if err := vtab.RegisterModule(nil, "idset", &Module{}); err != nil &&
		!strings.Contains(err.Error(), "already registered") {
		panic(err)
	}
}

// RegisterModule registers the idset virtual table module. Registration
// already happens at package load; this remains for callers issuing
// CREATE VIRTUAL TABLE by hand against a handle they manage themselves.
func RegisterModule(db *sql.DB) error {
	if err := vtab.RegisterModule(db, "idset", &Module{}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

// Create binds a new idset table instance to its Set body.
func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

// Connect rebinds an existing idset table instance, e.g. on another
// pooled connection.
func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("idset: missing set reference argument")
	}
	serial, err := strconv.ParseUint(strings.TrimSpace(args[3]), 0, 64)
	if err != nil || serial == 0 {
		return nil, fmt.Errorf("idset: bad set reference %q", args[3])
	}
	b := lookupBody(serial)
	if b == nil {
		return nil, fmt.Errorf("idset: set idset_%x is not attached", serial)
	}
	// No INTEGER PRIMARY KEY here: the rowid alias would make the engine
	// move the id into the rowid slot of every write, and the bridge
	// cannot tell a NULL rowid from 0 there. The column stays a plain
	// integer and the table keeps rowid == id itself.
	if err := ctx.Declare("CREATE TABLE idset (id INTEGER NOT NULL)"); err != nil {
		return nil, err
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("idset: EnableConstraintSupport failed: %w", err)
	}
	return &table{body: b}, nil
}

// table is a single idset virtual table instance.
type table struct {
	body *body
}

// BestIndex advertises support for =, <, <=, > and >= on the id column so
// the engine pushes those predicates down rather than materializing and
// filtering a full scan, and reports ascending ORDER BY as already
// satisfied since storage is always ascending.
func (t *table) BestIndex(info *vtab.IndexInfo) error {
	arg := 0
	ops := make([]byte, 0, len(info.Constraints))
	for i := range info.Constraints {
		c := &info.Constraints[i]
		c.ArgIndex = -1 // no argv slot unless advertised below
		if !c.Usable {
			continue
		}
		if c.Column != 0 && c.Column != -1 {
			return fmt.Errorf("idset: constraint on unknown column %d", c.Column)
		}
		switch c.Op {
		case vtab.OpEQ, vtab.OpGT, vtab.OpLE, vtab.OpLT, vtab.OpGE:
			ops = append(ops, byte(c.Op))
			c.ArgIndex = arg
			arg++
			// Omit stays false: Filter does not apply the pushed
			// values, so the engine must keep checking them.
		default:
		}
	}
	info.IdxNum = 0
	info.IdxStr = string(ops)

	info.OrderByConsumed = true
	for i := range info.OrderBy {
		ob := &info.OrderBy[i]
		if ob.Column != 0 && ob.Column != -1 {
			return fmt.Errorf("idset: order by unknown column %d", ob.Column)
		}
		if ob.Desc {
			info.OrderByConsumed = false
			break
		}
	}
	return nil
}

// Open allocates a new cursor over the bound Set.
func (t *table) Open() (vtab.Cursor, error) { return &cursor{body: t.body}, nil }

// Disconnect releases per-connection state; attachment is owned by the
// Set, so nothing to do.
func (t *table) Disconnect() error { return nil }

// Destroy handles DROP TABLE, issued by Detach; the Set clears its own
// attachment state.
func (t *table) Destroy() error { return nil }

// Insert implements the INSERT leg of vtab.Updater. cols[0] is the id
// column; *rowid carries an explicitly written rowid, 0 when the
// statement left it to the table.
func (t *table) Insert(cols []vtab.Value, rowid *int64) error {
	b := t.body
	if len(cols) < 1 || cols[0] == nil {
		return fmt.Errorf("INSERT INTO %s: %w", b.sqlName(), ErrNullID)
	}
	id, err := asID(cols[0])
	if err != nil {
		return err
	}
	if rowid != nil && *rowid != 0 && *rowid != id {
		return fmt.Errorf("INSERT INTO %s with rowid=%d, id=%d: %w",
			b.sqlName(), *rowid, id, ErrRowidChange)
	}
	if _, inserted := b.insert(id); !inserted {
		return fmt.Errorf("INSERT INTO %s: id %d: %w", b.sqlName(), id, ErrDuplicateID)
	}
	if rowid != nil {
		*rowid = id
	}
	return nil
}

// Update implements the UPDATE leg of vtab.Updater. A statement that only
// changes the id moves the element; *newRowid equals oldRowid unless the
// statement wrote the rowid directly, which is never legal here.
func (t *table) Update(oldRowid int64, cols []vtab.Value, newRowid *int64) error {
	b := t.body
	if newRowid != nil && *newRowid != 0 && *newRowid != oldRowid {
		return fmt.Errorf("UPDATE %s attempting to modify rowid %d to %d: %w",
			b.sqlName(), oldRowid, *newRowid, ErrRowidChange)
	}
	if len(cols) < 1 || cols[0] == nil {
		return fmt.Errorf("UPDATE %s where rowid=%d: %w", b.sqlName(), oldRowid, ErrNullID)
	}
	id, err := asID(cols[0])
	if err != nil {
		return err
	}
	if id == oldRowid {
		return nil
	}
	if b.contains(id) {
		return fmt.Errorf("UPDATE %s on rowid=%d: id %d: %w",
			b.sqlName(), oldRowid, id, ErrDuplicateID)
	}
	b.erase(oldRowid)
	b.insert(id)
	if newRowid != nil {
		*newRowid = id
	}
	return nil
}

// Delete implements the DELETE leg of vtab.Updater. Deleting an absent
// rowid is a no-op, matching value erasure.
func (t *table) Delete(oldRowid int64) error {
	t.body.erase(oldRowid)
	return nil
}

// Rename rejects any name change: renaming happens only as an internal
// safety check, never as an end-user operation.
func (t *table) Rename(newName string) error {
	orig := t.body.sqlName()
	if newName != orig {
		return fmt.Errorf("idset: cannot rename %s to %q", orig, newName)
	}
	return nil
}

// cursor scans one idset table. pos caches the storage index of the
// last-reported id; sync revalidates it against the live storage so a
// scan survives the Set mutating underneath it.
type cursor struct {
	body  *body
	pos   int
	id    ID
	valid bool // false: not yet positioned, or exhausted
}

// Filter begins a scan. Constraint values are advertised in BestIndex but
// deliberately not applied here: the scan always starts at the smallest
// element and the engine re-checks every predicate it pushed down (Omit
// was left false). Simple, and correct for re-entrant mutation.
func (c *cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	_, _, _ = idxNum, idxStr, vals
	c.pos = 0
	c.valid = false
	if len(c.body.items) > 0 {
		c.id = c.body.items[0]
		c.valid = true
	}
	return nil
}

// sync revalidates the cursor after possible mutation of the underlying
// storage. If the last-reported id is gone, the cursor relocates to the
// next surviving value above it, or exhausts. Reports whether the cursor
// still points at a row.
func (c *cursor) sync() bool {
	if !c.valid {
		return false
	}
	items := c.body.items
	if c.pos < len(items) && items[c.pos] == c.id {
		return true // no changes under the cursor
	}
	i, found := slices.BinarySearch(items, c.id)
	if found {
		i++
	}
	if i >= len(items) {
		c.valid = false
	} else {
		c.id = items[i]
		c.pos = i
	}
	return c.valid
}

// Next advances the cursor, unless sync already moved it past the
// last-reported id.
func (c *cursor) Next() error {
	if !c.valid {
		return nil
	}
	orig := c.id
	if c.sync() && c.id == orig {
		c.pos++
		if c.pos < len(c.body.items) {
			c.id = c.body.items[c.pos]
		} else {
			c.valid = false
		}
	}
	return nil
}

// Eof reports end-of-scan.
func (c *cursor) Eof() bool { return !c.valid }

// Column returns the id for column 0; any other index is out of range.
// A NULL value signals that a concurrent mutation drained the scan
// between the engine's Eof check and this call.
func (c *cursor) Column(col int) (vtab.Value, error) {
	if col != 0 {
		return nil, fmt.Errorf("idset: column %d out of range", col)
	}
	if !c.sync() {
		return nil, nil
	}
	return c.id, nil
}

// Rowid returns the id; rowid and id are identical in this table.
func (c *cursor) Rowid() (int64, error) {
	if !c.sync() {
		return 0, nil
	}
	return c.id, nil
}

// Close releases the cursor.
func (c *cursor) Close() error {
	c.body = nil
	c.valid = false
	return nil
}

// asID coerces a bridged column value to an ID the way the engine's own
// integer conversion does: integers pass through, floats truncate, text
// parses.
func asID(v vtab.Value) (ID, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("idset: cannot parse id %q: %w", val, err)
		}
		return n, nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("idset: cannot parse id %q: %w", string(val), err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("idset: unsupported id type %T", v)
	}
}
