package sheetorm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Headers maps header cell text to its zero-based column index
type Headers map[string]int

// ParseHeaders builds a Headers map from the first row of a range.
// Blank header cells are skipped; the first occurrence of a name wins.
func ParseHeaders(row []interface{}) Headers {
	headers := make(Headers, len(row))
	for i, cell := range row {
		if cell == nil {
			continue
		}
		name := strings.TrimSpace(fmt.Sprintf("%v", cell))
		if name == "" {
			continue
		}
		if _, exists := headers[name]; !exists {
			headers[name] = i
		}
	}
	return headers
}

// ColumnIndex resolves a column definition to a zero-based index
func ColumnIndex(def ColumnDef, headers Headers) (int, bool) {
	if pos, ok := def.ID.Position(); ok {
		return pos, true
	}
	idx, ok := headers[def.ID.Header()]
	return idx, ok
}

// Link is the decoded form of a HYPERLINK formula cell. An empty Label means
// the formula has no label argument.
type Link struct {
	URL   string
	Label string
}

var hyperlinkPattern = regexp.MustCompile(`(?is)^\s*=\s*HYPERLINK\(\s*"((?:[^"]|"")*)"\s*(?:[,;]\s*"((?:[^"]|"")*)"\s*)?\)\s*$`)

// ParseLink parses a HYPERLINK formula text
func ParseLink(formula string) (Link, error) {
	m := hyperlinkPattern.FindStringSubmatch(formula)
	if m == nil {
		return Link{}, fmt.Errorf("%w: %q", ErrLinkFormat, formula)
	}
	return Link{
		URL:   unquote(m[1]),
		Label: unquote(m[2]),
	}, nil
}

// Formula renders the link as HYPERLINK formula text
func (l Link) Formula() string {
	if l.Label == "" {
		return fmt.Sprintf(`=HYPERLINK("%s")`, quote(l.URL))
	}
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, quote(l.URL), quote(l.Label))
}

func quote(s string) string   { return strings.ReplaceAll(s, `"`, `""`) }
func unquote(s string) string { return strings.ReplaceAll(s, `""`, `"`) }

// DecodeRow converts a raw row into an Entity. Cells past the end of the row decode as nil.
func DecodeRow(row []interface{}, schema Schema, headers Headers) (Entity, error) {
	entity := make(Entity, len(schema))

	for _, prop := range schema.Names() {
		def := schema[prop]
		idx, ok := ColumnIndex(def, headers)
		if !ok {
			return nil, &MappingError{Property: prop}
		}

		var value interface{}
		if idx < len(row) {
			value = row[idx]
		}

		if def.Type == TypeLink {
			link, err := decodeLink(value)
			if err != nil {
				return nil, &MappingError{Property: prop, Err: err}
			}
			value = link
		}

		entity[prop] = value
	}

	return entity, nil
}

func decodeLink(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrLinkFormat, value)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	link, err := ParseLink(text)
	if err != nil {
		return nil, err
	}
	return link, nil
}

type placedValue struct {
	index int
	value interface{}
}

// EncodeRow converts a possibly partial entity to a raw row. Only properties present on
// the entity are emitted, each at its resolved column; the gaps are nil, which the
// writers treat as "leave the cell alone".
func EncodeRow(entity Entity, schema Schema, headers Headers) ([]interface{}, error) {
	placed := make([]placedValue, 0, len(entity))

	for prop, value := range entity {
		def, ok := schema[prop]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownProperty, prop)
		}
		idx, ok := ColumnIndex(def, headers)
		if !ok {
			return nil, &MappingError{Property: prop}
		}

		if def.Type == TypeLink {
			value = encodeLink(value)
		}

		placed = append(placed, placedValue{index: idx, value: value})
	}

	sort.SliceStable(placed, func(i, j int) bool {
		return placed[i].index < placed[j].index
	})

	if len(placed) == 0 {
		return []interface{}{}, nil
	}

	row := make([]interface{}, placed[len(placed)-1].index+1)
	for _, p := range placed {
		row[p.index] = p.value
	}
	return row, nil
}

func encodeLink(value interface{}) interface{} {
	switch v := value.(type) {
	case Link:
		return v.Formula()
	case *Link:
		if v == nil {
			return nil
		}
		return v.Formula()
	default:
		return value
	}
}
