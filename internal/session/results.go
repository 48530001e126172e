package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/mindwell/internal/screening"
	"github.com/rbright/mindwell/internal/tools"
)

// BeginInvocation tags a tool call with the current epoch.
func (c *Controller) BeginInvocation(tool string) tools.Invocation {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	return tools.Invocation{
		ID:        uuid.NewString(),
		Tool:      tool,
		Epoch:     epoch,
		StartedAt: time.Now(),
	}
}

// SetProcessing toggles the analyzing indicator for inv. Calls from an
// invocation that predates the last reset are ignored.
func (c *Controller) SetProcessing(inv tools.Invocation, on bool) {
	c.mu.Lock()
	if inv.Epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.processing = on
	c.mu.Unlock()
	c.indicator.ShowProcessing(context.Background(), on)
}

// PublishResult stores a screening result unless a reset happened since inv
// started. Results that outlive a disconnect are still published.
func (c *Controller) PublishResult(inv tools.Invocation, result screening.Result) bool {
	c.mu.Lock()
	if !c.currentLocked(inv) {
		c.mu.Unlock()
		return false
	}
	c.result = &result
	c.mu.Unlock()

	c.indicator.ShowResult(context.Background(), result)
	return true
}

// PublishHelplines replaces the helpline list wholesale.
func (c *Controller) PublishHelplines(inv tools.Invocation, helplines []screening.Helpline) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(inv) {
		return false
	}
	c.helplines = screening.CloneHelplines(helplines)
	return true
}

// ShowHelplines marks the helpline panel visible.
func (c *Controller) ShowHelplines(inv tools.Invocation) bool {
	c.mu.Lock()
	if !c.currentLocked(inv) {
		c.mu.Unlock()
		return false
	}
	c.helplinesVisible = true
	helplines := screening.CloneHelplines(c.helplines)
	c.mu.Unlock()

	c.indicator.ShowHelplines(context.Background(), helplines)
	return true
}

func (c *Controller) currentLocked(inv tools.Invocation) bool {
	if inv.Epoch == c.epoch {
		return true
	}
	if c.logger != nil {
		c.logger.Info("discarding stale tool result",
			"invocation", inv.ID,
			"tool", inv.Tool,
			"invocation_epoch", inv.Epoch,
			"epoch", c.epoch,
		)
	}
	return false
}

var _ tools.Sink = (*Controller)(nil)
var _ ToolHandlers = (*tools.Dispatcher)(nil)
