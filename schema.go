package sheetorm

import (
	"fmt"
	"sort"
)

// ColumnType is the scalar type a schema property maps to
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeNumber
	TypeBoolean
	TypeDate
	TypeSequence
	TypeLink
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeSequence:
		return "sequence"
	case TypeLink:
		return "link"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ParseColumnType converts a type name back to a ColumnType
func ParseColumnType(name string) (ColumnType, error) {
	for t := TypeString; t <= TypeLink; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown column type '%s'", ErrInvalidSchema, name)
}

// WildcardHeader is the header consulted for columns declared without an identifier
const WildcardHeader = "*"

// ColumnID identifies a column either by zero-based position or by header name.
// The zero value refers to the wildcard header.
type ColumnID struct {
	index  int
	header string
	byPos  bool
}

// At identifies a column by its zero-based position within the range
func At(index int) ColumnID {
	return ColumnID{index: index, byPos: true}
}

// Named identifies a column by the text of its header cell
func Named(header string) ColumnID {
	return ColumnID{header: header}
}

// Position returns the column position and whether the identifier is positional
func (id ColumnID) Position() (int, bool) {
	return id.index, id.byPos
}

// Header returns the header name the identifier resolves against
func (id ColumnID) Header() string {
	if id.byPos {
		return ""
	}
	if id.header == "" {
		return WildcardHeader
	}
	return id.header
}

func (id ColumnID) String() string {
	if id.byPos {
		return fmt.Sprintf("#%d", id.index)
	}
	return fmt.Sprintf("%q", id.Header())
}

// ColumnDef is one schema entry
type ColumnDef struct {
	Type       ColumnType
	ID         ColumnID
	PrimaryKey bool
	ReadOnly   bool
	Formula    bool
}

func StringCol(id ColumnID) ColumnDef   { return ColumnDef{Type: TypeString, ID: id} }
func NumberCol(id ColumnID) ColumnDef   { return ColumnDef{Type: TypeNumber, ID: id} }
func BoolCol(id ColumnID) ColumnDef     { return ColumnDef{Type: TypeBoolean, ID: id} }
func DateCol(id ColumnID) ColumnDef     { return ColumnDef{Type: TypeDate, ID: id} }
func SequenceCol(id ColumnID) ColumnDef { return ColumnDef{Type: TypeSequence, ID: id} }
func LinkCol(id ColumnID) ColumnDef     { return ColumnDef{Type: TypeLink, ID: id} }

// Key marks the column as the primary key
func (d ColumnDef) Key() ColumnDef {
	d.PrimaryKey = true
	return d
}

// AsReadOnly marks the column as never written by updates
func (d ColumnDef) AsReadOnly() ColumnDef {
	d.ReadOnly = true
	return d
}

// AsFormula marks the column as computed by a sheet formula. Formula columns are read-only.
func (d ColumnDef) AsFormula() ColumnDef {
	d.Formula = true
	d.ReadOnly = true
	return d
}

// Writable reports whether callers may assign the column after insertion
func (d ColumnDef) Writable() bool {
	return !d.ReadOnly && !d.Formula && d.Type != TypeSequence
}

// Schema maps entity property names to column definitions
type Schema map[string]ColumnDef

// Names returns the property names in a stable order
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsesHeaders reports whether the bound range carries a header row,
// which is the case as soon as one column is identified by header.
func (s Schema) UsesHeaders() bool {
	for _, def := range s {
		if _, ok := def.ID.Position(); !ok {
			return true
		}
	}
	return false
}

// KeyProperty returns the primary key property, if declared
func (s Schema) KeyProperty() (string, bool) {
	for _, name := range s.Names() {
		if s[name].PrimaryKey {
			return name, true
		}
	}
	return "", false
}

// PropertiesOfType lists the properties declared with the given type
func (s Schema) PropertiesOfType(t ColumnType) []string {
	var props []string
	for _, name := range s.Names() {
		if s[name].Type == t {
			props = append(props, name)
		}
	}
	return props
}

// Validate checks the schema declaration itself, independent of any range
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no columns declared", ErrInvalidSchema)
	}

	keys := 0
	for _, name := range s.Names() {
		def := s[name]
		if name == "" {
			return fmt.Errorf("%w: empty property name", ErrInvalidSchema)
		}
		if def.Type < TypeString || def.Type > TypeLink {
			return fmt.Errorf("%w: property '%s' has unknown type %v", ErrInvalidSchema, name, def.Type)
		}
		if pos, ok := def.ID.Position(); ok && pos < 0 {
			return fmt.Errorf("%w: property '%s' has negative column position %d", ErrInvalidSchema, name, pos)
		}
		if def.PrimaryKey {
			keys++
		}
	}

	if keys > 1 {
		return fmt.Errorf("%w: %d primary keys declared", ErrInvalidSchema, keys)
	}

	return nil
}
