package types

// Column names of the time tag schema.
const (
	ColumnChannel = "channel"
	ColumnTimeTag = "time_tag"
)

// Schema defines the structure of an output file's data.
type Schema struct {
	// Version tracks schema changes between releases of the writer
	Version int `json:"version"`

	// Columns defines the columns in the schema, in file order
	Columns []ColumnDef `json:"columns"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the logical type: UINT16, UINT64
	Type string `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`
}

// TimeTagSchema returns the fixed schema used for every file of a run.
// It is never inferred from data.
func TimeTagSchema() Schema {
	return Schema{
		Version: 1,
		Columns: []ColumnDef{
			{Name: ColumnChannel, Type: "UINT16", Nullable: false},
			{Name: ColumnTimeTag, Type: "UINT64", Nullable: false},
		},
	}
}

// ColumnNames returns the column names in file order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
