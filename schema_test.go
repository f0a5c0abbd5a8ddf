package sheetorm_test

import (
	"errors"
	"reflect"
	"testing"

	sheetorm "github.com/ideamans/go-sheetorm"
)

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  sheetorm.Schema
		wantErr bool
	}{
		{
			name: "valid",
			schema: sheetorm.Schema{
				"id":   sheetorm.SequenceCol(sheetorm.Named("id")).Key(),
				"name": sheetorm.StringCol(sheetorm.At(1)),
			},
		},
		{
			name:    "empty",
			schema:  sheetorm.Schema{},
			wantErr: true,
		},
		{
			name:    "empty property name",
			schema:  sheetorm.Schema{"": sheetorm.StringCol(sheetorm.At(0))},
			wantErr: true,
		},
		{
			name:    "negative position",
			schema:  sheetorm.Schema{"a": sheetorm.StringCol(sheetorm.At(-1))},
			wantErr: true,
		},
		{
			name:    "unknown type",
			schema:  sheetorm.Schema{"a": {Type: sheetorm.ColumnType(42)}},
			wantErr: true,
		},
		{
			name: "two primary keys",
			schema: sheetorm.Schema{
				"a": sheetorm.StringCol(sheetorm.At(0)).Key(),
				"b": sheetorm.StringCol(sheetorm.At(1)).Key(),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, sheetorm.ErrInvalidSchema) {
				t.Errorf("Validate() error = %v, want %v", err, sheetorm.ErrInvalidSchema)
			}
		})
	}
}

func TestSchema_UsesHeaders(t *testing.T) {
	positional := sheetorm.Schema{
		"a": sheetorm.StringCol(sheetorm.At(0)),
		"b": sheetorm.StringCol(sheetorm.At(1)),
	}
	if positional.UsesHeaders() {
		t.Error("positional schema should not use headers")
	}

	mixed := sheetorm.Schema{
		"a": sheetorm.StringCol(sheetorm.At(0)),
		"b": sheetorm.StringCol(sheetorm.Named("B")),
	}
	if !mixed.UsesHeaders() {
		t.Error("schema with a named column should use headers")
	}

	wildcard := sheetorm.Schema{"a": {Type: sheetorm.TypeString}}
	if !wildcard.UsesHeaders() {
		t.Error("schema with a wildcard column should use headers")
	}
}

func TestSchema_Lookups(t *testing.T) {
	schema := sheetorm.Schema{
		"id":    sheetorm.SequenceCol(sheetorm.At(0)).Key(),
		"name":  sheetorm.StringCol(sheetorm.At(1)),
		"order": sheetorm.SequenceCol(sheetorm.At(2)),
		"done":  sheetorm.BoolCol(sheetorm.At(3)),
	}

	if got := schema.Names(); !reflect.DeepEqual(got, []string{"done", "id", "name", "order"}) {
		t.Errorf("Names() = %v", got)
	}
	if key, ok := schema.KeyProperty(); !ok || key != "id" {
		t.Errorf("KeyProperty() = %v, %v, want id, true", key, ok)
	}
	if got := schema.PropertiesOfType(sheetorm.TypeSequence); !reflect.DeepEqual(got, []string{"id", "order"}) {
		t.Errorf("PropertiesOfType(sequence) = %v", got)
	}
	if got := schema.PropertiesOfType(sheetorm.TypeLink); got != nil {
		t.Errorf("PropertiesOfType(link) = %v, want nil", got)
	}

	if _, ok := (sheetorm.Schema{"a": sheetorm.StringCol(sheetorm.At(0))}).KeyProperty(); ok {
		t.Error("KeyProperty() reported a key on a schema without one")
	}
}

func TestColumnID(t *testing.T) {
	if pos, ok := sheetorm.At(3).Position(); !ok || pos != 3 {
		t.Errorf("At(3).Position() = %v, %v", pos, ok)
	}
	if h := sheetorm.At(3).Header(); h != "" {
		t.Errorf("At(3).Header() = %q, want empty", h)
	}
	if h := sheetorm.Named("Price").Header(); h != "Price" {
		t.Errorf("Named(Price).Header() = %q", h)
	}
	if h := (sheetorm.ColumnID{}).Header(); h != sheetorm.WildcardHeader {
		t.Errorf("zero ColumnID header = %q, want %q", h, sheetorm.WildcardHeader)
	}
}

func TestColumnDef_Flags(t *testing.T) {
	tests := []struct {
		name     string
		def      sheetorm.ColumnDef
		writable bool
	}{
		{name: "string", def: sheetorm.StringCol(sheetorm.At(0)), writable: true},
		{name: "key", def: sheetorm.NumberCol(sheetorm.At(0)).Key(), writable: true},
		{name: "read-only", def: sheetorm.DateCol(sheetorm.At(0)).AsReadOnly(), writable: false},
		{name: "formula", def: sheetorm.NumberCol(sheetorm.At(0)).AsFormula(), writable: false},
		{name: "sequence", def: sheetorm.SequenceCol(sheetorm.At(0)), writable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.Writable(); got != tt.writable {
				t.Errorf("Writable() = %v, want %v", got, tt.writable)
			}
		})
	}

	if def := sheetorm.NumberCol(sheetorm.At(0)).AsFormula(); !def.ReadOnly {
		t.Error("AsFormula() should imply read-only")
	}
}

func TestParseColumnType(t *testing.T) {
	for typ := sheetorm.TypeString; typ <= sheetorm.TypeLink; typ++ {
		got, err := sheetorm.ParseColumnType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseColumnType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := sheetorm.ParseColumnType("money"); !errors.Is(err, sheetorm.ErrInvalidSchema) {
		t.Errorf("ParseColumnType(money) error = %v", err)
	}
}
