package webhook

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/psantana5/agencysite/pkg/models"
)

// FilterCache compiles webhook filter expressions once and keeps the programs
type FilterCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// NewFilterCache creates an empty cache
func NewFilterCache() *FilterCache {
	return &FilterCache{programs: make(map[string]*vm.Program)}
}

func compileFilter(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid filter %q: %v", models.ErrValidation, expression, err)
	}
	return program, nil
}

// ValidateFilter reports whether expression compiles to a boolean filter
func ValidateFilter(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := compileFilter(expression)
	return err
}

func (c *FilterCache) program(expression string) (*vm.Program, error) {
	c.mu.RLock()
	program, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := compileFilter(expression)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.programs[expression] = program
	c.mu.Unlock()
	return program, nil
}

// Len returns the number of cached programs
func (c *FilterCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// Match evaluates expression against the event. The event is exposed as
// id, type, data and occurred_at; an empty expression matches everything.
func (c *FilterCache) Match(expression string, event models.Event) (bool, error) {
	if expression == "" {
		return true, nil
	}
	program, err := c.program(expression)
	if err != nil {
		return false, err
	}

	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	env := map[string]any{
		"id":          event.ID,
		"type":        event.Type,
		"data":        data,
		"occurred_at": event.OccurredAt,
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("filter %q: %w", expression, err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q returned %T, want bool", expression, out)
	}
	return matched, nil
}
