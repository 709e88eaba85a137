package blade

import (
	"bytes"
	"fmt"
	"html/template"
	"text/template/parse"

	"github.com/a-h/templ"
)

// Normalize turns fill content into a Slot, HTML-escaping what callables and
// strings return. Accepted values are *Slot (returned as is), string,
// template.HTML, *Fragment, templ.Component and functions taking a
// SlotContext and returning a string, template.HTML or any value, with or
// without an error.
func Normalize(v any) (*Slot, error) {
	return normalize(v, HTMLEscaper{})
}

// Normalize is the package-level Normalize using the engine's output policy.
func (e *Engine) Normalize(v any) (*Slot, error) {
	return normalize(v, e.escaper())
}

func normalize(v any, esc Escaper) (*Slot, error) {
	switch c := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: slot content is nil", ErrConfiguration)
	case *Slot:
		if c == nil {
			return nil, fmt.Errorf("%w: slot content is a nil *Slot", ErrConfiguration)
		}
		return c, nil
	case string:
		return textSlot(c, esc.Escape(c), c), nil
	case template.HTML:
		return textSlot(string(c), c, c), nil
	case *Fragment:
		if c == nil {
			return nil, fmt.Errorf("%w: slot content is a nil *Fragment", ErrConfiguration)
		}
		return c.slot(nil), nil
	}
	if fn, ok := asContentFunc(v); ok {
		return wrapCallable(v, fn, esc), nil
	}
	if c, ok := v.(templ.Component); ok {
		return templSlot(c), nil
	}
	return nil, fmt.Errorf("%w: unsupported slot content %T", ErrConfiguration, v)
}

func textSlot(text string, out template.HTML, contents any) *Slot {
	return &Slot{
		ContentFunc: func(SlotContext) (template.HTML, error) {
			return out, nil
		},
		Contents: contents,
		Nodelist: textNodelist(text),
		origin:   contents,
	}
}

func textNodelist(text string) *parse.ListNode {
	return &parse.ListNode{
		NodeType: parse.NodeList,
		Nodes: []parse.Node{
			&parse.TextNode{NodeType: parse.NodeText, Text: []byte(text)},
		},
	}
}

func asContentFunc(v any) (func(SlotContext) (any, error), bool) {
	switch fn := v.(type) {
	case SlotFunc:
		return func(ctx SlotContext) (any, error) {
			out, err := fn(ctx)
			return out, err
		}, true
	case func(SlotContext) (template.HTML, error):
		return func(ctx SlotContext) (any, error) {
			out, err := fn(ctx)
			return out, err
		}, true
	case func(SlotContext) (string, error):
		return func(ctx SlotContext) (any, error) {
			out, err := fn(ctx)
			return out, err
		}, true
	case func(SlotContext) (any, error):
		return fn, true
	case func(SlotContext) string:
		return func(ctx SlotContext) (any, error) {
			return fn(ctx), nil
		}, true
	case func(SlotContext) template.HTML:
		return func(ctx SlotContext) (any, error) {
			return fn(ctx), nil
		}, true
	case func(SlotContext) any:
		return func(ctx SlotContext) (any, error) {
			return fn(ctx), nil
		}, true
	}
	return nil, false
}

// wrapCallable escapes whatever fn returns. Every call builds a new wrapper;
// Slot.Equal compares the original function instead.
func wrapCallable(orig any, fn func(SlotContext) (any, error), esc Escaper) *Slot {
	var wrapper SlotFunc = func(ctx SlotContext) (template.HTML, error) {
		out, err := fn(ctx)
		if err != nil {
			return "", err
		}
		return esc.Escape(out), nil
	}
	return &Slot{ContentFunc: wrapper, Contents: wrapper, origin: orig}
}

func templSlot(c templ.Component) *Slot {
	return &Slot{
		ContentFunc: func(ctx SlotContext) (template.HTML, error) {
			var buf bytes.Buffer
			if err := c.Render(ctx.Context.StdContext(), &buf); err != nil {
				return "", err
			}
			return template.HTML(buf.String()), nil
		},
		Contents: c,
		origin:   c,
	}
}
