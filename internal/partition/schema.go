package partition

import (
	"fmt"
	"slices"

	"github.com/parquet-go/parquet-go"

	"github.com/martian17/parquet-generator/pkg/types"
)

// fileSchema is the Parquet schema every output file is written with.
var fileSchema = mustFileSchema(types.TimeTagSchema())

func mustFileSchema(s types.Schema) *parquet.Schema {
	schema, err := FileSchema(s)
	if err != nil {
		panic(err)
	}
	return schema
}

// leafNode maps a column type name to its Parquet leaf.
func leafNode(typ string) (parquet.Node, error) {
	switch typ {
	case "UINT16":
		return parquet.Uint(16), nil
	case "UINT64":
		return parquet.Uint(64), nil
	default:
		return nil, fmt.Errorf("partition: unsupported column type %q", typ)
	}
}

// FileSchema builds the Parquet schema of s. Columns are declared with their
// exact width so readers see UINT_16 for the channel rather than the wider
// Go field it is buffered in.
func FileSchema(s types.Schema) (*parquet.Schema, error) {
	group := make(parquet.Group, len(s.Columns))
	for _, c := range s.Columns {
		node, err := leafNode(c.Type)
		if err != nil {
			return nil, err
		}
		if c.Nullable {
			node = parquet.Optional(node)
		} else {
			node = parquet.Required(node)
		}
		group[c.Name] = node
	}

	schema := parquet.NewSchema("time_tags", group)
	// Group orders fields by name; the declared order must survive that.
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name())
	}
	if want := s.ColumnNames(); !slices.Equal(names, want) {
		return nil, fmt.Errorf("partition: column order %v cannot be represented, got %v", want, names)
	}
	return schema, nil
}

// CheckSchema reports whether schema stores exactly the columns of want, in
// order, with matching physical type, integer width, signedness and
// repetition.
func CheckSchema(schema *parquet.Schema, want types.Schema) error {
	fields := schema.Fields()
	if len(fields) != len(want.Columns) {
		return fmt.Errorf("partition: schema has %d columns, want %d", len(fields), len(want.Columns))
	}

	for i, c := range want.Columns {
		f := fields[i]
		if f.Name() != c.Name {
			return fmt.Errorf("partition: column %d is %q, want %q", i, f.Name(), c.Name)
		}
		if !f.Leaf() {
			return fmt.Errorf("partition: column %q is not a leaf", c.Name)
		}

		node, err := leafNode(c.Type)
		if err != nil {
			return err
		}
		got, exp := f.Type(), node.Type()
		if got.Kind() != exp.Kind() {
			return fmt.Errorf("partition: column %q has physical type %s, want %s", c.Name, got.Kind(), exp.Kind())
		}
		gotLT, expLT := got.LogicalType(), exp.LogicalType()
		if gotLT == nil || gotLT.Integer == nil || *gotLT.Integer != *expLT.Integer {
			return fmt.Errorf("partition: column %q has logical type %s, want %s", c.Name, got, exp)
		}

		if f.Repeated() {
			return fmt.Errorf("partition: column %q is repeated", c.Name)
		}
		if c.Nullable != f.Optional() {
			return fmt.Errorf("partition: column %q nullable is %t, want %t", c.Name, f.Optional(), c.Nullable)
		}
	}
	return nil
}
