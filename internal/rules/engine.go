// Package rules evaluates tag automation expressions against tracked
// events. Expressions are expr-lang programs that must yield a bool; the
// environment exposes eventType, eventData, sessionId and timestamp.
package rules

import (
	"errors"
	"fmt"
	"sync"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/lalith-99/cdpcore/internal/models"
)

var ErrEmptyExpression = errors.New("expression must not be empty")

// Engine compiles expressions once and caches the programs by source text.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*exprvm.Program
}

func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*exprvm.Program)}
}

func environment(sessionID string, ev models.Event) map[string]any {
	data := ev.EventData
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"eventType": ev.EventType,
		"eventData": data,
		"sessionId": sessionID,
		"timestamp": ev.Timestamp,
	}
}

// Compile checks that expression parses and returns a bool. Rule creation
// calls it so a bad expression is rejected before it is stored.
func (e *Engine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *Engine) program(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	e.mu.RLock()
	p, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := exprlang.Compile(expression,
		exprlang.Env(environment("", models.Event{})),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	e.mu.Lock()
	e.cache[expression] = p
	e.mu.Unlock()
	return p, nil
}

// Match runs expression against one event of a session.
func (e *Engine) Match(expression, sessionID string, ev models.Event) (bool, error) {
	p, err := e.program(expression)
	if err != nil {
		return false, err
	}
	out, err := exprlang.Run(p, environment(sessionID, ev))
	if err != nil {
		return false, fmt.Errorf("run %q: %w", expression, err)
	}
	matched, _ := out.(bool)
	return matched, nil
}
