package core

type SchemaType int

const (
	SchemaFul SchemaType = iota
	SchemaLess
)

type (
	// FormatterOptions provide various options for formatters
	FormatterOptions struct {
		SchemaType SchemaType
		ChunkStart int
	}

	// Formatter converts header and rows to bytes
	Formatter interface {
		Format(header Header, rows []Row, opts *FormatterOptions) ([]byte, error)
	}
)

type (
	// Row and Header are attributes of ResultStream iterator.
	// Values of a row are aligned with the header.
	Row    []any
	Header []string

	// Meta holds metadata
	Meta struct {
		// type of schema (schemaful or schemaless)
		SchemaType SchemaType
		// Table the rows were read from (empty for native commands)
		Table string
	}

	// ResultStream is a result from executed query and has a form of an iterator
	ResultStream interface {
		Meta() *Meta
		Header() Header
		Next() (Row, error)
		HasNext() bool
		Close()
	}
)

// Column is a declared column of a virtual table.
type Column struct {
	Name string
	Type string
	// Description is optional.
	Description string
}

type StructureType int

const (
	StructureTypeNone StructureType = iota
	StructureTypeTable
	StructureTypeCommand
)

func (s StructureType) String() string {
	switch s {
	case StructureTypeNone:
		return ""
	case StructureTypeTable:
		return "table"
	case StructureTypeCommand:
		return "command"
	default:
		return ""
	}
}

// Structure represents the structure of a single connection
type Structure struct {
	// Name to be displayed
	Name        string
	Description string
	// Type of layout
	Type StructureType
	// Children layout nodes
	Children []*Structure
}

// InsertStatus is the outcome of submitting a single row.
type InsertStatus struct {
	// Index of the row in the submitted batch
	Index int
	OK    bool
	// ID reported by the backend for the created resource (if any)
	ID  string
	Err error
}
