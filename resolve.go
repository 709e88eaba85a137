package blade

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"maps"
)

const frameKey = "__frame"

// renderFrame is the state of one template execution: the template set it
// runs in, the variables it sees and the fills of the component it belongs to.
// Frames travel through template data under frameKey.
type renderFrame struct {
	engine    *Engine
	unit      *compilation
	tmpl      *template.Template
	ctx       *Context
	fills     map[string]*Slot
	component string
	behavior  ContextBehavior
	// fillCtx overrides the context given to fills, set for frames that
	// render a fill body.
	fillCtx *Context
	// parent is the frame whose execution runs this one, set for partials
	// included from inside range or with blocks.
	parent *renderFrame
	err    error
}

func (f *renderFrame) fail(err error) error {
	if f.parent != nil {
		return f.parent.fail(err)
	}
	if f.err == nil {
		f.err = err
	}
	return err
}

func (f *renderFrame) derive(ctx *Context) *renderFrame {
	d := *f
	d.ctx = ctx
	d.err = nil
	return &d
}

func (f *renderFrame) data() map[string]any {
	d := f.ctx.Flatten()
	d[frameKey] = f
	return d
}

// execute runs the named template of the frame's set. An error raised by a
// directive is returned as is rather than wrapped by html/template.
func (f *renderFrame) execute(name string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := f.executeTo(&buf, name); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (f *renderFrame) executeTo(w io.Writer, name string) error {
	if f.err != nil {
		return f.err
	}
	if err := f.tmpl.ExecuteTemplate(w, name, f.data()); err != nil {
		if f.err != nil {
			return f.err
		}
		return err
	}
	return nil
}

func (f *renderFrame) fillContext() *Context {
	if f.fillCtx != nil {
		return f.fillCtx
	}
	if f.behavior == ContextBehaviorIsolated {
		return f.ctx.Root()
	}
	return f.ctx
}

// match finds the fill for decl. A default slot also takes the fill named
// "default"; filling it both ways is an error.
func (f *renderFrame) match(decl *slotDecl) (*Slot, error) {
	slot := f.fills[decl.Name]
	if decl.Default && decl.Name != defaultFillName {
		if def := f.fills[defaultFillName]; def != nil {
			if slot != nil {
				return nil, &SyntaxError{
					File: f.component,
					Msg: fmt.Sprintf("Slot '%s' of component '%s' was filled twice: once explicitly and once implicitly as 'default'.",
						decl.Name, f.component),
				}
			}
			slot = def
		}
	}
	return slot, nil
}

func (f *renderFrame) resolveSlot(decl *slotDecl, slotData map[string]any) (template.HTML, error) {
	slot, err := f.match(decl)
	if err != nil {
		return "", err
	}
	fallback := newSlotFallback(func() (template.HTML, error) {
		return f.execute(decl.Block)
	})
	if slot == nil {
		if decl.Required {
			return "", &MissingRequiredSlotError{Slot: decl.Name, Component: f.component}
		}
		return fallback.HTML()
	}

	out, err := slot.Invoke(slotData, fallback, f.fillContext())
	if err != nil {
		return "", err
	}
	if err := fallback.Err(); err != nil {
		return "", err
	}
	return out, nil
}

func (f *renderFrame) collectFills(site *componentSite, bodies map[string]any) (map[string]*Slot, error) {
	fills := make(map[string]*Slot, len(site.Fills))
	for _, fd := range site.Fills {
		if body := bodies[fd.Name]; body != nil {
			if !fd.Blank {
				return nil, &ConflictingFillSourceError{Fill: fd.Name}
			}
			slot, err := f.engine.Normalize(body)
			if err != nil {
				return nil, fmt.Errorf("fill %q: %w", fd.Name, err)
			}
			fills[fd.Name] = slot
			continue
		}
		fills[fd.Name] = f.unit.fragment(f.tmpl, fd).slot(f)
	}
	return fills, nil
}

func frameOf(root any) (*renderFrame, error) {
	if m, ok := root.(map[string]any); ok {
		if f, ok := m[frameKey].(*renderFrame); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: @slot and @component need the root data ($); pass it to @include", ErrTemplateSyntax)
}

// dotLayer returns the current dot when it is a map other than the root data,
// so that range and with blocks stay visible to slot bodies.
func dotLayer(dot any) map[string]any {
	m, ok := dot.(map[string]any)
	if !ok {
		return nil
	}
	if _, isRoot := m[frameKey]; isRoot {
		return nil
	}
	return m
}

// includeData backs {{ __include }}, the data of an @include without an
// argument. A map dot other than the root is merged over the root data, so
// the partial sees the loop variables and keeps the frame its directives need.
func includeData(root, dot any) any {
	layer := dotLayer(dot)
	if layer == nil {
		return dot
	}
	rm, ok := root.(map[string]any)
	if !ok {
		return dot
	}
	f, ok := rm[frameKey].(*renderFrame)
	if !ok {
		return dot
	}
	inc := f.derive(f.ctx.With(layer))
	inc.parent = f
	d := maps.Clone(rm)
	maps.Copy(d, layer)
	d[frameKey] = inc
	return d
}

// renderSlot backs {{ __slot }}.
func renderSlot(root any, id int, dot any, slotData map[string]any) (template.HTML, error) {
	f, err := frameOf(root)
	if err != nil {
		return "", err
	}
	decl := f.unit.slot(id)
	if decl == nil {
		return "", f.fail(fmt.Errorf("%w: unknown slot #%d", ErrTemplateSyntax, id))
	}
	frame := f
	if layer := dotLayer(dot); layer != nil {
		frame = f.derive(f.ctx.With(layer))
	}
	out, err := frame.resolveSlot(decl, slotData)
	if err != nil {
		return "", f.fail(err)
	}
	return out, nil
}

// renderComponentCall backs {{ __component }}.
func renderComponentCall(root any, id int, dot any, args []any, kwargs map[string]any, bodies map[string]any) (template.HTML, error) {
	f, err := frameOf(root)
	if err != nil {
		return "", err
	}
	site := f.unit.site(id)
	if site == nil {
		return "", f.fail(fmt.Errorf("%w: unknown component call #%d", ErrTemplateSyntax, id))
	}
	frame := f
	if layer := dotLayer(dot); layer != nil {
		frame = f.derive(f.ctx.With(layer))
	}
	fills, err := frame.collectFills(site, bodies)
	if err != nil {
		return "", f.fail(err)
	}
	out, err := f.engine.renderComponent(f.unit, frame.ctx, site.Component, args, kwargs, fills, nil, f.behavior)
	if err != nil {
		return "", f.fail(err)
	}
	return out, nil
}

func directiveFuncs() template.FuncMap {
	return template.FuncMap{
		"__slot":      renderSlot,
		"__component": renderComponentCall,
		"__kwargs":    buildKwargs,
		"__args":      buildArgs,
		"__dict":      buildDict,
		"__include":   includeData,
	}
}

// RenderInput describes a component render started from Go code.
type RenderInput struct {
	Args   []any
	Kwargs map[string]any
	// Slots maps slot names to content accepted by Normalize. A nil value
	// leaves the slot unfilled.
	Slots map[string]any
	// Context is added to the component's own scope.
	Context map[string]any
	// Behavior overrides Config.ContextBehavior for this render.
	Behavior ContextBehavior
}

// RenderComponent renders the component name into w. Nothing is written
// when rendering fails.
func (e *Engine) RenderComponent(ctx context.Context, w io.Writer, name string, in RenderInput) error {
	fills, err := e.normalizeFills(in.Slots)
	if err != nil {
		return err
	}
	root := NewContext(nil).WithStdContext(ctx)
	behavior := in.Behavior.orDefault(e.Config.ContextBehavior)
	out, err := e.renderComponent(e.current(), root, normalizeName(name), in.Args, in.Kwargs, fills, in.Context, behavior)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, string(out))
	return err
}

// ResolveSlots renders the template of component with rc as its context,
// filling its slots from fills. No data loader runs; rc is expected to hold
// what the template needs.
func (e *Engine) ResolveSlots(ctx context.Context, component string, fills map[string]any, rc *Context, behavior ContextBehavior) (template.HTML, error) {
	slots, err := e.normalizeFills(fills)
	if err != nil {
		return "", err
	}
	if rc == nil {
		rc = NewContext(nil)
	}
	target, err := e.lookupComponent(e.current(), normalizeName(component))
	if err != nil {
		return "", err
	}
	frame := &renderFrame{
		engine:    e,
		unit:      target.unit,
		tmpl:      target.tmpl,
		ctx:       rc.WithStdContext(ctx),
		fills:     slots,
		component: component,
		behavior:  behavior.orDefault(e.Config.ContextBehavior),
	}
	return frame.execute(target.name)
}

// normalizeFills converts caller fills to slots. nil values stay nil and
// repeated strings share one slot.
func (e *Engine) normalizeFills(fills map[string]any) (map[string]*Slot, error) {
	out := make(map[string]*Slot, len(fills))
	texts := map[string]*Slot{}
	for name, v := range fills {
		if v == nil {
			out[name] = nil
			continue
		}
		text, isText := v.(string)
		if slot, ok := texts[text]; isText && ok {
			out[name] = slot
			continue
		}
		slot, err := e.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %w", name, err)
		}
		if isText {
			texts[text] = slot
		}
		out[name] = slot
	}
	return out, nil
}
