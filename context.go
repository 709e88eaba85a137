package blade

import (
	"context"
	"maps"
)

// CompileContext carries state while a file and the files it extends or
// includes are flattened into one template text.
type CompileContext struct {
	Files map[string]*ParsedFile
	// Yields is a map of section names to default content
	Yields map[string]YieldInfo
	// FilledSections holds sections already defined by a child file
	FilledSections map[string]struct{}
	// FilledIncludes holds partials already written into the template
	FilledIncludes map[string]struct{}
	// Stacks is a map of stack names to a template file, prevent duplicate stack names
	Stacks map[string]string
	// PushStacks is a map of stack names to values to push
	// In the array, the last value is popped first
	PushStacks map[string][]string
	// Blocks holds hoisted slot and fill blocks already defined
	Blocks map[string]struct{}
	// Extended holds files whose parent was already compiled, to catch cycles
	Extended map[string]struct{}
	// Framed is set when any compiled file uses component directives
	Framed bool
}

func newCompileContext(files map[string]*ParsedFile) *CompileContext {
	return &CompileContext{
		Files:          files,
		Yields:         map[string]YieldInfo{},
		FilledSections: map[string]struct{}{},
		FilledIncludes: map[string]struct{}{},
		Stacks:         map[string]string{},
		PushStacks:     map[string][]string{},
		Blocks:         map[string]struct{}{},
		Extended:       map[string]struct{}{},
	}
}

// YieldInfo contains information about a yield
type YieldInfo struct {
	Name     string
	FileName string
	Default  string
}

// Context is the variable scope a template renders against: a stack of maps
// looked up innermost first.
//
// A component render builds a new Context on top of its caller's. The caller's
// context stays reachable through Root, which is what fills see in isolated
// mode. A Context is not safe for concurrent mutation; every render uses its own.
type Context struct {
	layers []map[string]any
	root   *Context
	std    context.Context
}

// NewContext returns a context with data as its only layer.
func NewContext(data map[string]any) *Context {
	if data == nil {
		data = map[string]any{}
	}
	return &Context{layers: []map[string]any{data}}
}

// Push adds a layer on top of the context.
func (c *Context) Push(data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	c.layers = append(c.layers, data)
}

// Pop removes and returns the innermost layer. The base layer is never removed.
func (c *Context) Pop() map[string]any {
	if len(c.layers) <= 1 {
		return nil
	}
	last := c.layers[len(c.layers)-1]
	c.layers = c.layers[:len(c.layers)-1]
	return last
}

// Get looks key up from the innermost layer outwards.
func (c *Context) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	for i := len(c.layers) - 1; i >= 0; i-- {
		if v, ok := c.layers[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Lookup returns the value for key, or def when no layer has it.
func (c *Context) Lookup(key string, def any) any {
	if v, ok := c.Get(key); ok {
		return v
	}
	return def
}

// Set binds key in the innermost layer.
func (c *Context) Set(key string, value any) {
	if len(c.layers) == 0 {
		c.Push(nil)
	}
	c.layers[len(c.layers)-1][key] = value
}

// Depth returns the number of layers.
func (c *Context) Depth() int {
	if c == nil {
		return 0
	}
	return len(c.layers)
}

// Root returns the scope that existed before the owning component pushed its
// data. A context that was not created for a component is its own root.
func (c *Context) Root() *Context {
	if c == nil {
		return nil
	}
	if c.root != nil {
		return c.root
	}
	return c
}

// Scope returns a context for a component rendered from c: c's layers plus
// data, with c as root. c is not modified.
func (c *Context) Scope(data map[string]any) *Context {
	return c.scope(ContextBehaviorInherited, data)
}

func (c *Context) scope(behavior ContextBehavior, layers ...map[string]any) *Context {
	var base []map[string]any
	if behavior != ContextBehaviorIsolated {
		base = c.layers
	}
	out := make([]map[string]any, 0, len(base)+len(layers))
	out = append(out, base...)
	for _, layer := range layers {
		if layer != nil {
			out = append(out, layer)
		}
	}
	if len(out) == 0 {
		out = append(out, map[string]any{})
	}
	return &Context{layers: out, root: c, std: c.std}
}

// With returns a copy of c with data as an extra innermost layer.
func (c *Context) With(data map[string]any) *Context {
	if data == nil {
		data = map[string]any{}
	}
	layers := make([]map[string]any, len(c.layers), len(c.layers)+1)
	copy(layers, c.layers)
	return &Context{layers: append(layers, data), root: c.root, std: c.std}
}

// Flatten merges all layers into a new map, inner layers winning.
func (c *Context) Flatten() map[string]any {
	out := make(map[string]any)
	if c == nil {
		return out
	}
	for _, layer := range c.layers {
		maps.Copy(out, layer)
	}
	return out
}

// StdContext returns the context.Context of the render, never nil.
func (c *Context) StdContext() context.Context {
	if c == nil || c.std == nil {
		return context.Background()
	}
	return c.std
}

// WithStdContext returns a copy of c carrying ctx.
func (c *Context) WithStdContext(ctx context.Context) *Context {
	layers := make([]map[string]any, len(c.layers))
	copy(layers, c.layers)
	return &Context{layers: layers, root: c.root, std: ctx}
}
