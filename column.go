package firebolt

// Column describes a single column of a query result set. Only Name and
// Type are populated by the driver; the remaining fields exist for
// interface compatibility and are always unset. Nullability is never
// reported, even for Nullable(...) wire types.
type Column struct {
	// Name is the column name
	Name string

	// Type is the parsed semantic type of the column
	Type ColumnType

	// DisplaySize is never set
	DisplaySize *int

	// InternalSize is never set
	InternalSize *int

	// Precision is never set
	Precision *int

	// Scale is never set
	Scale *int

	// Nullable is never set
	Nullable *bool
}
