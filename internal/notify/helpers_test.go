package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kozaktomas/lookout/internal/config"
)

// recordingChannel captures sent messages and optionally fails.
type recordingChannel struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (c *recordingChannel) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return c.err
}

func (c *recordingChannel) sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

var errChannelDown = errors.New("gateway unavailable")

func testTemplates(t *testing.T) config.TemplatesConfig {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg.Templates
}
