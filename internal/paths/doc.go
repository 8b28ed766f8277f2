// Package paths resolves savekeep's filesystem locations.
//
// Default locations follow the XDG Base Directory Specification through
// github.com/adrg/xdg: configuration lives in <ConfigHome>/savekeep and the
// store in <DataHome>/savekeep.
//
// # Store Layout
//
// [Store] names every location inside a store directory:
//
//	<store>/index.yaml
//	<store>/journal.db
//	<store>/entries/<name>/snapshots/<id>/manifest.json
//	<store>/entries/<name>/.staging/
//	<store>/entries/<name>/.trash/
//
// Nothing outside the snapshot engine and the registry should write below a
// store directory.
package paths
