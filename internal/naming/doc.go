// Package naming derives entry names and snapshot ids and normalizes paths
// for comparison.
//
// Entry names come from the base component of an entry's root path and are
// never changed afterwards. Snapshot ids are UTC timestamps in the form
// 20060102T150405; a collision within one entry appends -1, -2 and so on.
//
// Path comparison goes through a [Normalizer]. Whether comparisons fold case
// is a configuration decision (path_case) and is never inferred from the
// host filesystem.
package naming
