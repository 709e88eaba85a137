package blade

import (
	"fmt"
	"html/template"
	"maps"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentDir = "components/"
	tracerName   = "github.com/dangdungcntt/go-blade-slots"
)

// DataFunc builds the variables a component template renders with.
type DataFunc func(in ComponentInput) (map[string]any, error)

// ComponentInput is what a DataFunc receives.
type ComponentInput struct {
	Args   []any
	Kwargs map[string]any
	// Slots holds the normalized fills. A nil entry is a slot that was
	// explicitly left unfilled.
	Slots map[string]*Slot
	// Context is the scope the component is rendered from.
	Context *Context
}

// Component registers a component under a name.
//
// Template names a loaded template; when empty the component name is used,
// then "components/<name>". Source is inline markup parsed at registration
// and takes precedence over Template; it is compiled against the loaded
// templates on first use and again after every Load that changed them.
// Data defaults to the keyword arguments.
type Component struct {
	Template string
	Source   string
	Data     DataFunc
}

type registeredComponent struct {
	def    Component
	name   string
	parsed *ParsedFile

	mu       sync.Mutex
	inline   *compilation
	builtFor *compilation
}

type componentTarget struct {
	def  Component
	unit *compilation
	tmpl *template.Template
	name string
}

// RegisterComponent makes c available to @component and RenderComponent.
func (e *Engine) RegisterComponent(name string, c Component) error {
	name = normalizeName(name)
	if name == "" {
		return fmt.Errorf("%w: component name is empty", ErrConfiguration)
	}
	reg := &registeredComponent{def: c}
	if c.Source != "" {
		reg.name = "__component_" + name
		p, err := e.parseFile(reg.name, c.Source)
		if err != nil {
			return err
		}
		reg.parsed = p
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.components == nil {
		e.components = map[string]*registeredComponent{}
	}
	e.components[name] = reg
	return nil
}

func (e *Engine) lookupComponent(unit *compilation, name string) (componentTarget, error) {
	e.mu.RLock()
	reg := e.components[name]
	e.mu.RUnlock()

	var def Component
	tmplName := name
	if reg != nil {
		if reg.parsed != nil {
			inline, err := e.inlineUnit(reg)
			if err != nil {
				return componentTarget{}, err
			}
			return componentTarget{def: reg.def, unit: inline, tmpl: inline.templates[reg.name], name: reg.name}, nil
		}
		def = reg.def
		if def.Template != "" {
			tmplName = normalizeName(def.Template)
		}
	}
	if unit == nil {
		unit = e.current()
	}
	for _, candidate := range []string{tmplName, componentDir + tmplName} {
		if tmpl, owner := unit.lookup(candidate); tmpl != nil {
			return componentTarget{def: def, unit: owner, tmpl: tmpl, name: candidate}, nil
		}
	}
	return componentTarget{}, fmt.Errorf("%w: component %q: %w", ErrConfiguration, name, ErrTemplateNotFound)
}

// inlineUnit returns the compiled Source of reg. It is rebuilt whenever Load
// swapped in a new set, so included partials follow the loaded files.
func (e *Engine) inlineUnit(reg *registeredComponent) (*compilation, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e.mu.RLock()
	current := e.unit
	if reg.inline != nil && reg.builtFor == current {
		e.mu.RUnlock()
		return reg.inline, nil
	}
	files := maps.Clone(e.parsedFiles)
	e.mu.RUnlock()

	unit, err := e.compileParsed(reg.parsed, files)
	if err != nil {
		return nil, err
	}
	reg.inline, reg.builtFor = unit, current
	return unit, nil
}

func (e *Engine) tracer() trace.Tracer {
	tp := e.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

// renderComponent renders name from the scope outer. extra is an additional
// layer of the component's own scope.
func (e *Engine) renderComponent(unit *compilation, outer *Context, name string, args []any, kwargs map[string]any, fills map[string]*Slot, extra map[string]any, behavior ContextBehavior) (template.HTML, error) {
	target, err := e.lookupComponent(unit, name)
	if err != nil {
		return "", err
	}

	std, span := e.tracer().Start(outer.StdContext(), "blade.component",
		trace.WithAttributes(attribute.String("blade.component", name)))
	defer span.End()

	out, err := e.executeComponent(target, name, outer.WithStdContext(std), args, kwargs, fills, extra, behavior)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

func (e *Engine) executeComponent(target componentTarget, name string, outer *Context, args []any, kwargs map[string]any, fills map[string]*Slot, extra map[string]any, behavior ContextBehavior) (template.HTML, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	if fills == nil {
		fills = map[string]*Slot{}
	}
	data := maps.Clone(kwargs)
	if target.def.Data != nil {
		var err error
		data, err = target.def.Data(ComponentInput{
			Args:    args,
			Kwargs:  maps.Clone(kwargs),
			Slots:   fills,
			Context: outer,
		})
		if err != nil {
			return "", err
		}
	}

	frame := &renderFrame{
		engine:    e,
		unit:      target.unit,
		tmpl:      target.tmpl,
		ctx:       outer.scope(behavior, extra, data),
		fills:     fills,
		component: name,
		behavior:  behavior,
	}
	return frame.execute(target.name)
}
