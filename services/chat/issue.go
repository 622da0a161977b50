package chat

import "sync"

// DescriptionHistoryLimit bounds IssueContext's history.
const DescriptionHistoryLimit = 20

// IssueContext remembers what analysed photos showed. The image pipeline is its only
// writer; the suggestion router reads it.
type IssueContext struct {
	mu      sync.RWMutex
	last    string
	history []string
}

func NewIssueContext() *IssueContext {
	return &IssueContext{}
}

// Record stores desc as the latest description and, when non-empty, pushes it onto the
// history, evicting the oldest entry past the limit.
func (c *IssueContext) Record(desc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = desc
	if desc == "" {
		return
	}
	c.history = append(c.history, desc)
	if over := len(c.history) - DescriptionHistoryLimit; over > 0 {
		c.history = append([]string(nil), c.history[over:]...)
	}
}

func (c *IssueContext) LastDescription() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *IssueContext) History() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.history...)
}
