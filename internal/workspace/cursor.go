package workspace

import "sync"

// Cursor tracks the directory an operation currently works in.
type Cursor struct {
	mu      sync.Mutex
	current string
}

// NewCursor creates a cursor positioned at dir.
func NewCursor(dir string) *Cursor {
	return &Cursor{current: dir}
}

// Current returns the directory the cursor points at.
func (c *Cursor) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Enter moves the cursor to dir and returns a func that moves it back.
//
//	restore := cursor.Enter(dir)
//	defer restore()
func (c *Cursor) Enter(dir string) func() {
	c.mu.Lock()
	previous := c.current
	c.current = dir
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.current = previous
		c.mu.Unlock()
	}
}
