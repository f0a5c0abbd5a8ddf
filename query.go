package sheetorm

import (
	"context"
	"fmt"
)

// Match is an entity paired with its data row index
type Match struct {
	Index  int
	Entity Entity
}

// Where returns the entities satisfying predicate, with their row indexes
func (t *Table) Where(ctx context.Context, predicate func(Entity) bool) ([]Match, error) {
	items, err := t.Read(ctx)
	if err != nil {
		return nil, err
	}

	var results []Match
	for i, item := range items {
		if predicate(item) {
			results = append(results, Match{Index: i, Entity: item})
		}
	}
	return results, nil
}

// Find returns the first entity satisfying predicate
func (t *Table) Find(ctx context.Context, predicate func(Entity) bool) (Entity, bool, error) {
	idx, items, err := t.findIndex(ctx, predicate)
	if err != nil || idx < 0 {
		return nil, false, err
	}
	return items[idx], true, nil
}

// FindIndex returns the row index of the first entity satisfying predicate, or -1
func (t *Table) FindIndex(ctx context.Context, predicate func(Entity) bool) (int, error) {
	idx, _, err := t.findIndex(ctx, predicate)
	return idx, err
}

// FindByKey looks an entity up by its primary key property. Numbers compare by
// value regardless of their Go type.
func (t *Table) FindByKey(ctx context.Context, key interface{}) (Entity, int, error) {
	prop, ok := t.schema.KeyProperty()
	if !ok {
		return nil, -1, fmt.Errorf("%w: no primary key declared", ErrInvalidSchema)
	}

	idx, items, err := t.findIndex(ctx, func(e Entity) bool {
		return compareEqual(e[prop], key)
	})
	if err != nil {
		return nil, -1, err
	}
	if idx < 0 {
		return nil, -1, ErrKeyNotFound
	}
	return items[idx], idx, nil
}

func (t *Table) findIndex(ctx context.Context, predicate func(Entity) bool) (int, []Entity, error) {
	items, err := t.Read(ctx)
	if err != nil {
		return -1, nil, err
	}
	for i, item := range items {
		if predicate(item) {
			return i, items, nil
		}
	}
	return -1, items, nil
}

// compareEqual compares two values for equality
func compareEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	// numbers compare by value across int/float types
	if isNumeric(a) && isNumeric(b) {
		return toFloat64(a) == toFloat64(b)
	}

	if la, ok := a.(Link); ok {
		if lb, ok := b.(Link); ok {
			return la == lb
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// isNumeric checks if a value is numeric
func isNumeric(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// toFloat64 converts a numeric value to float64
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	default:
		return 0
	}
}
