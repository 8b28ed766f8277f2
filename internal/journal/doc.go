// Package journal records savekeep operations in a SQLite database.
//
// Every mutating call of the service (adding an entry, taking, restoring or
// removing a snapshot, and so on) appends one [Event]. Events carry a ULID
// so they sort by time, and the history can be filtered by entry, operation
// and time.
//
// The database lives at <store>/journal.db, runs in WAL mode and migrates
// its schema through PRAGMA user_version.
package journal
