// Package engine opens database handles on the modernc.org/sqlite driver.
// Open suits file-backed databases; OpenSingle pins a single underlying
// connection, which in-memory databases need to keep their state visible
// across statements.
package engine
