package plugin

import (
	"context"
	"fmt"
)

// HookType identifies a plugin lifecycle point.
type HookType string

const (
	// HookSessionStart fires after the session span is created.
	HookSessionStart HookType = "session_start"

	// HookSessionFinish fires after the session span ends, before shutdown.
	HookSessionFinish HookType = "session_finish"

	// HookTestStart fires after a test span is created.
	HookTestStart HookType = "test_start"

	// HookTestFinish fires after a test span ends.
	HookTestFinish HookType = "test_finish"
)

// HookHandler is a callback invoked at a lifecycle point. The data map
// carries point-specific values ("session", "test", "outcome").
type HookHandler func(ctx context.Context, data map[string]interface{}) error

// HookManager holds registered lifecycle callbacks.
//
// Handler errors never fail the run: the plugin logs and suppresses them,
// matching the best-effort contract of everything else here.
type HookManager struct {
	handlers map[HookType][]HookHandler
}

// NewHookManager creates an empty hook manager.
func NewHookManager() *HookManager {
	return &HookManager{
		handlers: make(map[HookType][]HookHandler),
	}
}

// RegisterHandler registers a handler for a hook type.
func (h *HookManager) RegisterHandler(hookType HookType, handler HookHandler) {
	h.handlers[hookType] = append(h.handlers[hookType], handler)
}

// Execute runs all handlers for the given hook type, stopping at the first
// error.
func (h *HookManager) Execute(ctx context.Context, hookType HookType, data map[string]interface{}) error {
	handlers, ok := h.handlers[hookType]
	if !ok {
		return nil
	}

	for _, handler := range handlers {
		if err := handler(ctx, data); err != nil {
			return fmt.Errorf("hook %s failed: %w", hookType, err)
		}
	}
	return nil
}
