package errors

// Kind names an error class of the backend contract. The string values are
// what the HTTP and MCP surfaces report to callers.
type Kind string

// Error kinds, one per sentinel plus Internal for anything unclassified.
const (
	KindNotFound            Kind = "NotFound"
	KindSnapshotNotFound    Kind = "SnapshotNotFound"
	KindDuplicateName       Kind = "DuplicateName"
	KindDuplicateSnapshotID Kind = "DuplicateSnapshotId"
	KindInvalidPath         Kind = "InvalidPath"
	KindInvalidName         Kind = "InvalidName"
	KindProtectedSnapshot   Kind = "ProtectedSnapshot"
	KindIOFailure           Kind = "IOFailure"
	KindInternal            Kind = "Internal"
)

// kindOrder is checked first to last; more specific kinds come first.
var kindOrder = []struct {
	sentinel error
	kind     Kind
}{
	{ErrProtectedSnapshot, KindProtectedSnapshot},
	{ErrDuplicateSnapshotID, KindDuplicateSnapshotID},
	{ErrDuplicateName, KindDuplicateName},
	{ErrSnapshotNotFound, KindSnapshotNotFound},
	{ErrNotFound, KindNotFound},
	{ErrInvalidPath, KindInvalidPath},
	{ErrInvalidName, KindInvalidName},
	{ErrMissingName, KindInvalidName},
	{ErrIOFailure, KindIOFailure},
}

// KindOf classifies err by the first taxonomy sentinel found in its chain.
// A nil error has an empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindInternal
}
