package blade

import (
	"html/template"
	"sync"
)

// compilation is one compiled set of templates. Load builds a new one and
// swaps it in; renders keep using the set they started with.
type compilation struct {
	engine    *Engine
	templates map[string]*template.Template
	// framed marks templates that use component directives and need a render frame.
	framed map[string]bool
	decls  *declTable
	// standalone sets (fragments, inline components) look up other
	// templates in the engine's current set.
	standalone bool
	fragments  sync.Map // fragmentKey -> *Fragment
}

type fragmentKey struct {
	tmpl  *template.Template
	block string
}

func newCompilation(e *Engine) *compilation {
	return &compilation{
		engine:    e,
		templates: map[string]*template.Template{},
		framed:    map[string]bool{},
		decls:     newDeclTable(),
	}
}

// lookup returns the template set holding name and the compilation it belongs to.
func (u *compilation) lookup(name string) (*template.Template, *compilation) {
	if u == nil {
		return nil, nil
	}
	if t, ok := u.templates[name]; ok {
		return t, u
	}
	if u.standalone && u.engine != nil {
		if cur := u.engine.current(); cur != nil && cur != u {
			return cur.lookup(name)
		}
	}
	return nil, nil
}

func (u *compilation) slot(id int) *slotDecl {
	return u.decls.slots[id]
}

func (u *compilation) site(id int) *componentSite {
	return u.decls.sites[id]
}

// fragment returns the cached fragment for a fill block of tmpl.
func (u *compilation) fragment(tmpl *template.Template, fd *fillDecl) *Fragment {
	key := fragmentKey{tmpl: tmpl, block: fd.Block}
	if v, ok := u.fragments.Load(key); ok {
		return v.(*Fragment)
	}
	fr := &Fragment{
		engine:      u.engine,
		unit:        u,
		tmpl:        tmpl,
		name:        fd.Block,
		source:      fd.Source,
		dataVar:     fd.DataVar,
		fallbackVar: fd.FallbackVar,
	}
	v, _ := u.fragments.LoadOrStore(key, fr)
	return v.(*Fragment)
}
