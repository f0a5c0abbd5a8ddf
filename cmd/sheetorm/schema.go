package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sheetorm "github.com/ideamans/go-sheetorm"
)

// schemaFile is the YAML layout of a --schema file:
//
//	columns:
//	  id:    {type: sequence, header: id, key: true}
//	  name:  {type: string, index: 1}
//	  total: {type: number, header: total, formula: true}
type schemaFile struct {
	Columns map[string]columnSpec `yaml:"columns"`
}

type columnSpec struct {
	Type     string `yaml:"type"`
	Header   string `yaml:"header,omitempty"`
	Index    *int   `yaml:"index,omitempty"`
	Key      bool   `yaml:"key,omitempty"`
	ReadOnly bool   `yaml:"readOnly,omitempty"`
	Formula  bool   `yaml:"formula,omitempty"`
}

func loadSchema(path string) (sheetorm.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return parseSchema(data)
}

func parseSchema(data []byte) (sheetorm.Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if len(file.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns declared", sheetorm.ErrInvalidSchema)
	}

	schema := make(sheetorm.Schema, len(file.Columns))
	for prop, spec := range file.Columns {
		typ, err := sheetorm.ParseColumnType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", prop, err)
		}
		if spec.Index != nil && spec.Header != "" {
			return nil, fmt.Errorf("%w: column '%s' sets both index and header", sheetorm.ErrInvalidSchema, prop)
		}

		def := sheetorm.ColumnDef{Type: typ}
		switch {
		case spec.Index != nil:
			def.ID = sheetorm.At(*spec.Index)
		case spec.Header != "":
			def.ID = sheetorm.Named(spec.Header)
		}
		if spec.Key {
			def = def.Key()
		}
		if spec.ReadOnly {
			def = def.AsReadOnly()
		}
		if spec.Formula {
			def = def.AsFormula()
		}
		schema[prop] = def
	}

	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

// parseAssignments turns k=v pairs into an entity typed after the schema
func parseAssignments(schema sheetorm.Schema, pairs []string) (sheetorm.Entity, error) {
	entity := make(sheetorm.Entity, len(pairs))
	for _, pair := range pairs {
		prop, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		def, ok := schema[prop]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", sheetorm.ErrUnknownProperty, prop)
		}
		v, err := parseValue(def, raw)
		if err != nil {
			return nil, fmt.Errorf("property '%s': %w", prop, err)
		}
		entity[prop] = v
	}
	return entity, nil
}

// parseValue converts a command-line value to the Go type of the column.
// An empty value clears the cell on insert and is ignored on update.
func parseValue(def sheetorm.ColumnDef, raw string) (interface{}, error) {
	if raw == "" {
		return nil, nil
	}

	switch def.Type {
	case sheetorm.TypeNumber:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		return f, nil
	case sheetorm.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", raw)
		}
		return b, nil
	case sheetorm.TypeDate:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", raw)
	case sheetorm.TypeLink:
		url, label, _ := strings.Cut(raw, "|")
		return sheetorm.Link{URL: url, Label: label}, nil
	case sheetorm.TypeSequence:
		return nil, fmt.Errorf("%w: sequence values are generated", sheetorm.ErrReadOnlyProperty)
	default:
		return raw, nil
	}
}
