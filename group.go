package sheetorm

import (
	"context"
	"fmt"
)

// Group commits several managed tables together: Commit runs in registration
// order, Rollback in reverse so later tables are undone first.
type Group struct {
	members []*Managed
}

// NewGroup creates a group from the given members
func NewGroup(members ...*Managed) *Group {
	g := &Group{}
	for _, m := range members {
		g.Add(m)
	}
	return g
}

// Add registers m; nil and already registered members are ignored
func (g *Group) Add(m *Managed) {
	if m == nil || g.index(m) >= 0 {
		return
	}
	g.members = append(g.members, m)
}

// Remove unregisters m
func (g *Group) Remove(m *Managed) {
	if idx := g.index(m); idx >= 0 {
		g.members = append(g.members[:idx], g.members[idx+1:]...)
	}
}

// Len returns the number of members
func (g *Group) Len() int { return len(g.members) }

// Commit commits every member in order and stops at the first failure
func (g *Group) Commit(ctx context.Context) error {
	for i, m := range g.members {
		if err := m.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit group member %d: %w", i, err)
		}
	}
	return nil
}

// Rollback rolls every member back, last registered first
func (g *Group) Rollback() {
	for i := len(g.members) - 1; i >= 0; i-- {
		g.members[i].Rollback()
	}
}

func (g *Group) index(m *Managed) int {
	for i, p := range g.members {
		if p == m {
			return i
		}
	}
	return -1
}
