package blade

import (
	"html/template"
	"maps"
	"strconv"
	"text/template/parse"
)

// Fragment is a compiled piece of template markup used as slot content: the
// body of a @fill block, the loose content of a @component call, or source
// compiled with ParseFragment.
type Fragment struct {
	engine      *Engine
	unit        *compilation
	tmpl        *template.Template
	name        string
	source      string
	dataVar     string
	fallbackVar string
}

// ParseFragment compiles src into a fragment. src may use every directive a
// template file can, and may include templates loaded by the engine.
func (e *Engine) ParseFragment(src string) (*Fragment, error) {
	name := "__fragment_" + strconv.Itoa(e.nextID())
	unit, err := e.compileStandalone(name, src)
	if err != nil {
		return nil, err
	}
	return &Fragment{
		engine: e,
		unit:   unit,
		tmpl:   unit.templates[name],
		name:   name,
		source: src,
	}, nil
}

// String returns the source the fragment was compiled from.
func (fr *Fragment) String() string {
	return fr.source
}

// Nodelist returns the parse tree of the fragment body.
func (fr *Fragment) Nodelist() *parse.ListNode {
	t := fr.tmpl.Lookup(fr.name)
	if t == nil || t.Tree == nil {
		return nil
	}
	return t.Tree.Root
}

// Render renders the fragment against ctx. A nil ctx renders with no variables.
func (fr *Fragment) Render(ctx *Context) (template.HTML, error) {
	return fr.render(SlotContext{Data: map[string]any{}, Context: ctx}, nil)
}

// slot wraps the fragment. owner is the frame of the template that holds the
// fill, nil for fragments used on their own.
func (fr *Fragment) slot(owner *renderFrame) *Slot {
	return &Slot{
		ContentFunc: func(sc SlotContext) (template.HTML, error) {
			return fr.render(sc, owner)
		},
		Contents: fr.source,
		Nodelist: fr.Nodelist(),
		origin:   fr,
	}
}

func (fr *Fragment) render(sc SlotContext, owner *renderFrame) (template.HTML, error) {
	ctx := sc.Context
	if ctx == nil {
		ctx = NewContext(nil)
	}
	layer := maps.Clone(sc.Data)
	if layer == nil {
		layer = map[string]any{}
	}
	if fr.dataVar != "" {
		layer[fr.dataVar] = sc.Data
	}
	if fr.fallbackVar != "" {
		var fb Fallback = TextFallback("")
		if sc.Fallback != nil {
			fb = sc.Fallback
		}
		layer[fr.fallbackVar] = fb
	}

	frame := &renderFrame{
		engine:   fr.engine,
		unit:     fr.unit,
		tmpl:     fr.tmpl,
		ctx:      ctx.With(layer),
		behavior: fr.engine.Config.ContextBehavior.orDefault(""),
	}
	if owner != nil {
		frame.fills = owner.fills
		frame.component = owner.component
		frame.behavior = owner.behavior
		frame.fillCtx = owner.fillContext()
	}
	return frame.execute(fr.name)
}
