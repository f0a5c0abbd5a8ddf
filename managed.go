package sheetorm

import (
	"context"
	"fmt"
	"log/slog"
)

type opKind int

const (
	opAdd opKind = iota
	opDelete
)

func (k opKind) String() string {
	if k == opAdd {
		return "add"
	}
	return "delete"
}

// operation is one pending structural change; index is the list position the
// entity held when the operation was queued
type operation struct {
	kind   opKind
	entity *Tracked
	index  int
}

// Managed is a transactional overlay over a Table. Entities listed from it are
// live: edits, additions and removals stay in memory until Commit replays them
// against the table, or Rollback discards them.
//
// Recorded indexes are positions in the in-memory list after every earlier queued
// operation, so replaying the log in order keeps them aligned with the physical rows.
type Managed struct {
	table  *Table
	store  []*Tracked
	log    []operation
	loaded bool
	logger *slog.Logger
}

// NewManaged creates a managed overlay; nothing is read until first use
func NewManaged(table *Table) *Managed {
	return &Managed{
		table:  table,
		logger: table.logger,
	}
}

// Table returns the underlying table
func (m *Managed) Table() *Table { return m.table }

// List returns the live tracked entities in list order, loading them on first use
func (m *Managed) List(ctx context.Context) ([]*Tracked, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]*Tracked, len(m.store))
	copy(out, m.store)
	return out, nil
}

// Refresh reloads the entities from the table. Previously listed entities become
// invalid and queued operations are discarded.
func (m *Managed) Refresh(ctx context.Context) error {
	items, err := m.table.Read(ctx)
	if err != nil {
		return err
	}

	for _, e := range m.store {
		e.invalid = true
	}
	for _, op := range m.log {
		op.entity.invalid = true
	}

	m.store = make([]*Tracked, len(items))
	for i, item := range items {
		m.store[i] = newTracked(m.table.schema, item)
	}
	m.log = nil
	m.loaded = true
	return nil
}

// Add queues item for insertion after the last entity
func (m *Managed) Add(ctx context.Context, item Entity) (*Tracked, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return m.add(item, len(m.store))
}

// AddAt queues item for insertion at index. An index equal to the list length
// appends; other indexes wrap modulo the length.
func (m *Managed) AddAt(ctx context.Context, item Entity, index int) (*Tracked, error) {
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	if index != len(m.store) {
		index = trimIndex(index, len(m.store))
	}
	return m.add(item, index)
}

func (m *Managed) add(item Entity, index int) (*Tracked, error) {
	for prop := range item {
		def, ok := m.table.schema[prop]
		if !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownProperty, prop)
		}
		if def.Type == TypeSequence {
			return nil, fmt.Errorf("%w: '%s' is assigned on commit", ErrReadOnlyProperty, prop)
		}
	}

	e := newAddedTracked(m.table.schema, item)
	m.store = append(m.store, nil)
	copy(m.store[index+1:], m.store[index:])
	m.store[index] = e

	m.log = append(m.log, operation{kind: opAdd, entity: e, index: index})
	return e, nil
}

// Remove queues the removal of e and invalidates it. It reports false when e
// is not part of the list.
func (m *Managed) Remove(e *Tracked) bool {
	idx := -1
	for i, p := range m.store {
		if p == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	m.store = append(m.store[:idx], m.store[idx+1:]...)
	e.invalid = true
	m.log = append(m.log, operation{kind: opDelete, entity: e, index: idx})
	return true
}

// Pending returns the number of queued structural operations
func (m *Managed) Pending() int { return len(m.log) }

// Dirty reports whether Commit has anything to write
func (m *Managed) Dirty() bool {
	if len(m.log) > 0 {
		return true
	}
	for _, e := range m.store {
		if e.dirty {
			return true
		}
	}
	return false
}

// FindByKey returns the tracked entity whose primary key equals key
func (m *Managed) FindByKey(ctx context.Context, key interface{}) (*Tracked, int, error) {
	prop, ok := m.table.schema.KeyProperty()
	if !ok {
		return nil, -1, fmt.Errorf("%w: no primary key declared", ErrInvalidSchema)
	}
	if err := m.ensureLoaded(ctx); err != nil {
		return nil, -1, err
	}
	for i, e := range m.store {
		v, _ := e.Get(prop)
		if compareEqual(v, key) {
			return e, i, nil
		}
	}
	return nil, -1, ErrKeyNotFound
}

// Commit replays the queued operations in order, then writes back the edited
// entities at their current list position. Each operation leaves the log only once
// applied, so after a failure the remaining work is still queued; the table should
// then be refreshed, since a partially applied operation cannot be told apart.
// If the workbook buffers writes, it is flushed at the end.
func (m *Managed) Commit(ctx context.Context) error {
	m.logger.Debug("commit started", "operations", len(m.log))

	for len(m.log) > 0 {
		op := m.log[0]
		switch op.kind {
		case opAdd:
			item := op.entity.snapshot()
			appendRows := op.index == m.table.Count()
			if err := m.table.InsertAt(ctx, []Entity{item}, op.index, appendRows); err != nil {
				return fmt.Errorf("failed to commit add at %d: %w", op.index, err)
			}
			// item now carries the generated sequence values
			op.entity.fold(item)
		case opDelete:
			if err := m.table.DeleteAt(ctx, op.index, 1); err != nil {
				return fmt.Errorf("failed to commit delete at %d: %w", op.index, err)
			}
		}
		m.log = m.log[1:]
	}

	updated := 0
	for i, e := range m.store {
		if !e.dirty {
			continue
		}
		if changes := e.changes(); len(changes) > 0 {
			if err := m.table.UpdateAt(ctx, []Entity{changes}, i); err != nil {
				return fmt.Errorf("failed to commit update at %d: %w", i, err)
			}
			updated++
		}
		e.fold(e.snapshot())
	}

	if f, ok := m.table.workbook.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush workbook: %w", err)
		}
	}

	m.logger.Debug("commit finished", "updated", updated, "rows", m.table.Count())
	return nil
}

// Rollback undoes the queued operations in reverse order and drops every pending
// edit. The table is not touched since nothing reached it yet.
func (m *Managed) Rollback() {
	m.logger.Debug("rollback", "operations", len(m.log))

	for i := len(m.log) - 1; i >= 0; i-- {
		op := m.log[i]
		switch op.kind {
		case opAdd:
			m.store = append(m.store[:op.index], m.store[op.index+1:]...)
			op.entity.invalid = true
		case opDelete:
			m.store = append(m.store, nil)
			copy(m.store[op.index+1:], m.store[op.index:])
			m.store[op.index] = op.entity
			op.entity.invalid = false
		}
	}
	m.log = nil

	for _, e := range m.store {
		e.reset()
	}
}

func (m *Managed) ensureLoaded(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	return m.Refresh(ctx)
}
