package sheetorm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
)

// SequenceKey derives the store key of a sequence counter from the workbook
// identity, the serialized range descriptor and the property name
func SequenceKey(workbookID string, desc RangeDescriptor, property string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%s", workbookID, desc.String(), property)))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sequences issues durable, monotonically increasing integers per (table, column).
// Calls must be sequential; there is no guard against concurrent issuers.
type Sequences struct {
	store      KVStore
	workbookID string
	desc       RangeDescriptor
}

// NewSequences scopes a counter family to one bound range
func NewSequences(store KVStore, workbookID string, desc RangeDescriptor) *Sequences {
	return &Sequences{store: store, workbookID: workbookID, desc: desc}
}

func (s *Sequences) key(property string) string {
	return SequenceKey(s.workbookID, s.desc, property)
}

// Current reads the last issued value without changing it; ok is false if
// the counter was never issued or reset
func (s *Sequences) Current(ctx context.Context, property string) (value int64, ok bool, err error) {
	raw, found, err := s.store.Get(ctx, s.key(property))
	if err != nil {
		return 0, false, fmt.Errorf("failed to read sequence '%s': %w", property, err)
	}
	if !found || raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt sequence '%s' value %q: %w", property, raw, err)
	}
	return value, true, nil
}

// Next stores and returns the successor of the current value; an absent counter starts at 1
func (s *Sequences) Next(ctx context.Context, property string) (int64, error) {
	current, _, err := s.Current(ctx, property)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.store.Set(ctx, s.key(property), strconv.FormatInt(next, 10)); err != nil {
		return 0, fmt.Errorf("failed to store sequence '%s': %w", property, err)
	}
	return next, nil
}

// Reset overwrites the counter; values already issued are unaffected
func (s *Sequences) Reset(ctx context.Context, property string, value int64) error {
	if err := s.store.Set(ctx, s.key(property), strconv.FormatInt(value, 10)); err != nil {
		return fmt.Errorf("failed to reset sequence '%s': %w", property, err)
	}
	return nil
}
