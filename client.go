package sheetorm

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Client owns a workbook and the configuration shared by the tables bound to it
type Client struct {
	config   Config
	workbook Workbook
	mu       sync.Mutex
	closed   bool
}

// New creates a client over the given workbook
func New(workbook Workbook, config *Config) *Client {
	return &Client{
		config:   config.withDefaults(),
		workbook: workbook,
	}
}

// Workbook returns the underlying workbook
func (c *Client) Workbook() Workbook { return c.workbook }

// Table binds schema to the range described by desc
func (c *Client) Table(ctx context.Context, desc RangeDescriptor, schema Schema) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	cfg := c.config
	return NewTable(ctx, c.workbook, desc, schema, &cfg)
}

// Managed binds schema to desc and wraps the table in a managed overlay
func (c *Client) Managed(ctx context.Context, desc RangeDescriptor, schema Schema) (*Managed, error) {
	t, err := c.Table(ctx, desc, schema)
	if err != nil {
		return nil, err
	}
	return NewManaged(t), nil
}

// KeyValueStore binds a key/value sheet laid out as KeyValueSchema
func (c *Client) KeyValueStore(ctx context.Context, desc RangeDescriptor) (*TableStore, error) {
	t, err := c.Table(ctx, desc, KeyValueSchema)
	if err != nil {
		return nil, err
	}
	return NewTableStore(t)
}

// Flush persists buffered workbook writes, if the workbook buffers any
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.flush(ctx)
}

func (c *Client) flush(ctx context.Context) error {
	if f, ok := c.workbook.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("failed to flush workbook: %w", err)
		}
	}
	return nil
}

// Close flushes and releases the workbook. Closing twice is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.flush(ctx); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if closer, ok := c.workbook.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close workbook: %w", err)
		}
	}

	c.config.Logger.Debug("client closed", "workbook", c.workbook.ID())
	return nil
}
