// Package telemetry attributes SDK usage to the tools driving it. Callers
// wrap their work in [WithToolContext]; every request issued inside the
// callback carries the active tool names in its User-Agent.
package telemetry

import (
	"fmt"
	"sync"
)

var (
	mu    sync.Mutex
	stack []string
)

// WithToolContext pushes name onto the tool-context stack for the duration
// of fn. The context is popped on every exit path, including when fn
// returns an error or panics.
//
// Contexts nest: a tool calling another instrumented tool yields both names
// on requests issued by the inner one.
func WithToolContext(name string, fn func() error) error {
	push(name)
	defer pop(name)
	return fn()
}

// Contexts returns a snapshot of the active tool contexts, outermost first.
func Contexts() []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), stack...)
}

func push(name string) {
	mu.Lock()
	defer mu.Unlock()
	stack = append(stack, name)
}

func pop(name string) {
	mu.Lock()
	defer mu.Unlock()
	if len(stack) == 0 || stack[len(stack)-1] != name {
		// The stack is corrupted; continuing would misattribute every
		// subsequent request. This happens when contexts are popped from a
		// different goroutine than pushed them.
		panic(fmt.Sprintf("telemetry: tool context mismatch popping %q", name))
	}
	stack = stack[:len(stack)-1]
}
