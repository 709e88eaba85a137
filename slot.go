package blade

import (
	"fmt"
	"html/template"
	"reflect"
	"text/template/parse"
)

// SlotFunc produces the content of a slot.
type SlotFunc func(ctx SlotContext) (template.HTML, error)

// SlotContext is what a slot's content receives when it is invoked.
type SlotContext struct {
	// Data holds the arguments declared on the @slot directive.
	Data map[string]any
	// Fallback is nil for a bare invocation, a TextFallback when a string was
	// passed, and a *SlotFallback during template rendering.
	Fallback Fallback
	// Context is nil for a bare invocation, otherwise the render context as
	// allowed by the active ContextBehavior.
	Context *Context
}

// Fallback is the content a slot shows when nothing fills it.
type Fallback interface {
	String() string
	HTML() (template.HTML, error)
}

// TextFallback is a fallback given as a plain string. It is used verbatim.
type TextFallback string

func (f TextFallback) String() string {
	return string(f)
}

func (f TextFallback) HTML() (template.HTML, error) {
	return template.HTML(f), nil
}

// SlotFallback renders the body between @slot and @endslot on demand.
// Nothing is rendered until String or HTML is called.
type SlotFallback struct {
	render func() (template.HTML, error)
	err    error
}

func newSlotFallback(render func() (template.HTML, error)) *SlotFallback {
	return &SlotFallback{render: render}
}

func (f *SlotFallback) HTML() (template.HTML, error) {
	out, err := f.render()
	if err != nil && f.err == nil {
		f.err = err
	}
	return out, err
}

// String renders the fallback. A render error yields "" and is kept for Err.
func (f *SlotFallback) String() string {
	out, _ := f.HTML()
	return string(out)
}

// Err returns the first error hit while rendering the fallback.
func (f *SlotFallback) Err() error {
	return f.err
}

// Slot wraps the content of a fill behind a single invocation contract.
// It is immutable once built and may be shared between renders.
type Slot struct {
	// ContentFunc produces the slot content.
	ContentFunc SlotFunc
	// Contents is the value the slot was built from: the string for text
	// fills, the body source for template fills, the escaping wrapper for
	// callables.
	Contents any
	// Nodelist is the parsed body for template fills and a single text node
	// for string fills. It is nil for callables.
	Nodelist *parse.ListNode

	origin any
}

// NewSlot returns a slot that calls fn as is.
func NewSlot(fn SlotFunc) *Slot {
	return &Slot{ContentFunc: fn, Contents: fn, origin: fn}
}

// Invoke renders the slot. fallback may be nil, a string, template.HTML or a
// Fallback; strings are used verbatim.
func (s *Slot) Invoke(data map[string]any, fallback any, ctx *Context) (template.HTML, error) {
	if s == nil || s.ContentFunc == nil {
		return "", fmt.Errorf("%w: slot has no content function", ErrConfiguration)
	}
	if data == nil {
		data = map[string]any{}
	}
	fb, err := toFallback(fallback)
	if err != nil {
		return "", err
	}
	return s.ContentFunc(SlotContext{Data: data, Fallback: fb, Context: ctx})
}

// InvokeOption sets one argument of Call.
type InvokeOption func(*invocation)

type invocation struct {
	data     map[string]any
	fallback any
	ctx      *Context
}

func WithData(data map[string]any) InvokeOption {
	return func(in *invocation) {
		in.data = data
	}
}

func WithFallback(fallback any) InvokeOption {
	return func(in *invocation) {
		in.fallback = fallback
	}
}

func WithContext(ctx *Context) InvokeOption {
	return func(in *invocation) {
		in.ctx = ctx
	}
}

// Call is Invoke with named arguments. Call() renders with empty data, no
// fallback and no context.
func (s *Slot) Call(opts ...InvokeOption) (template.HTML, error) {
	var in invocation
	for _, opt := range opts {
		if opt != nil {
			opt(&in)
		}
	}
	return s.Invoke(in.data, in.fallback, in.ctx)
}

// Equal reports whether two slots were built from the same content: equal
// strings or template sources, or the same function.
func (s *Slot) Equal(other *Slot) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	a, b := s.origin, other.origin
	if a == nil || b == nil {
		a, b = s.Contents, other.Contents
	}
	return sameContents(a, b)
}

func sameContents(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return false
}

func toFallback(v any) (Fallback, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Fallback:
		return t, nil
	case string:
		return TextFallback(t), nil
	case template.HTML:
		return TextFallback(t), nil
	case fmt.Stringer:
		return TextFallback(t.String()), nil
	}
	return nil, fmt.Errorf("%w: unsupported fallback type %T", ErrConfiguration, v)
}
