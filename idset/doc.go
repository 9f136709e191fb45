// Package idset implements a sorted, duplicate-free container of 64-bit
// integer ids that can also be attached to a SQLite database handle, where
// it appears as a live single-column virtual table. Both views operate on
// the same storage: mutating the Set through its API is immediately visible
// to SQL, and INSERT/UPDATE/DELETE statements against the table mutate the
// Set in place.
//
// A Set's table name is stable for the Set's whole lifetime, so the name
// can be interpolated into ad hoc SQL:
//
//	ids := idset.New()
//	if err := ids.Attach(db); err != nil { ... }
//	rows, err := db.Query(fmt.Sprintf(
//	        "SELECT id FROM %s WHERE id > ?", ids), 100)
//
// Sets are not safe for concurrent use; each Set has a single logical
// owner, matching the single-threaded calling convention of a SQLite
// connection. Re-entrant mutation is supported: a scan over the table
// tolerates the underlying Set changing mid-iteration (see the cursor
// notes in this package), at the price of weak iteration guarantees.
package idset
