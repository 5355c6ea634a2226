package runner

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprCache compiles expressions once and reuses the programs across
// tests and attempts. Programs are environment-independent, so the
// expression text is the whole key.
type exprCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func (c *exprCache) eval(expression string, env map[string]any) (any, error) {
	program, err := c.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	return result, nil
}

func (c *exprCache) compile(expression string) (*vm.Program, error) {
	c.mu.RLock()
	if program, ok := c.programs[expression]; ok {
		c.mu.RUnlock()
		return program, nil
	}
	c.mu.RUnlock()

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// Double-check in case another goroutine compiled the same expression.
	if existing, ok := c.programs[expression]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	if c.programs == nil {
		c.programs = make(map[string]*vm.Program)
	}
	c.programs[expression] = program
	c.mu.Unlock()

	return program, nil
}
