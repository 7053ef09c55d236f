// Package cursor tracks the current match among an ordered list of matched
// document positions and steps through them with wraparound.
package cursor

import "fmt"

// Direction is the step applied by Step. Forward and Backward are the only
// values the UI issues, but any integer is accepted and wrapped.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Cursor is a position into a list of matched indices. The position is only
// meaningful while Total() > 0.
type Cursor struct {
	matches  []int
	position int
}

// New returns a Cursor positioned on the first of matches.
func New(matches []int) *Cursor {
	c := &Cursor{}
	c.Reset(matches)
	return c
}

// Reset installs a new match list and moves to its first entry. It must be
// called for every new filter result, even when only the content changed.
func (c *Cursor) Reset(matches []int) {
	owned := make([]int, len(matches))
	copy(owned, matches)
	c.matches = owned
	c.position = 0
}

// Total returns the number of matches.
func (c *Cursor) Total() int {
	return len(c.matches)
}

// Active reports whether there is a current match.
func (c *Cursor) Active() bool {
	return len(c.matches) > 0
}

// Position returns the zero-based position within the match list.
func (c *Cursor) Position() int {
	return c.position
}

// Current returns the position and the document index it points at. ok is
// false when there are no matches.
func (c *Cursor) Current() (position, docIndex int, ok bool) {
	if len(c.matches) == 0 {
		return 0, 0, false
	}
	return c.position, c.matches[c.position], true
}

// Step moves the cursor by dir, wrapping past either end, and returns the new
// current match. It is a no-op when there are no matches.
func (c *Cursor) Step(dir Direction) (position, docIndex int, ok bool) {
	total := len(c.matches)
	if total == 0 {
		return 0, 0, false
	}
	delta := int(dir) % total
	c.position = (c.position + delta + total) % total
	return c.position, c.matches[c.position], true
}

// Label renders the one-based "k/N" counter, or "" when nothing matched.
func (c *Cursor) Label() string {
	if len(c.matches) == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", c.position+1, len(c.matches))
}
