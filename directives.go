package blade

import (
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
)

const (
	slotBlockPrefix = "__slot_"
	fillBlockPrefix = "__fill_"
	defaultFillName = "default"
)

var reDirective = regexp.MustCompile(`@(component|slot|fill)\(|@end(component|slot|fill)\b`) // @slot('name') ... @endslot

type slotDecl struct {
	ID       int
	Name     string
	Required bool
	Default  bool
	// Block is the define holding the fallback body.
	Block string
}

type fillDecl struct {
	Name        string
	Block       string
	Source      string
	Blank       bool
	DataVar     string
	FallbackVar string
}

type componentSite struct {
	ID        int
	Component string
	Fills     []*fillDecl
	// bodies holds the body= operands of the fills, as template text.
	bodies []kwarg
}

type hoistedBlock struct {
	Name string
	Body string
}

type declTable struct {
	slots map[int]*slotDecl
	sites map[int]*componentSite
}

func newDeclTable() *declTable {
	return &declTable{
		slots: map[int]*slotDecl{},
		sites: map[int]*componentSite{},
	}
}

func (t *declTable) merge(other *declTable) {
	if other == nil {
		return
	}
	maps.Copy(t.slots, other.slots)
	maps.Copy(t.sites, other.sites)
}

func (t *declTable) empty() bool {
	return t == nil || len(t.slots)+len(t.sites) == 0
}

// directiveCompiler rewrites @component, @slot and @fill blocks into calls of
// the directive template funcs. Bodies are hoisted into their own defines so
// they can be rendered on demand.
type directiveCompiler struct {
	file        string
	src         string
	pos         int
	endStart    int
	nextID      func() int
	blocks      []hoistedBlock
	decls       *declTable
	defaultSlot string
}

func compileDirectives(file, src string, nextID func() int) (string, []hoistedBlock, *declTable, error) {
	c := &directiveCompiler{
		file:   file,
		src:    src,
		nextID: nextID,
		decls:  newDeclTable(),
	}
	if !reDirective.MatchString(src) {
		return src, nil, c.decls, nil
	}
	out, err := c.compile("", nil)
	if err != nil {
		return "", nil, nil, err
	}
	return out, c.blocks, c.decls, nil
}

// compile consumes source until @end<until>, or the end of input when until
// is empty. site is set while compiling the direct body of a @component.
func (c *directiveCompiler) compile(until string, site *componentSite) (string, error) {
	var out strings.Builder
	for {
		loc := reDirective.FindStringSubmatchIndex(c.src[c.pos:])
		if loc == nil {
			if until != "" {
				return "", syntaxErrorf(c.file, "missing @end%s", until)
			}
			out.WriteString(c.src[c.pos:])
			c.pos = len(c.src)
			return out.String(), nil
		}
		start, end := c.pos+loc[0], c.pos+loc[1]
		out.WriteString(c.src[c.pos:start])

		if loc[4] >= 0 {
			kind := c.src[c.pos+loc[4] : c.pos+loc[5]]
			c.pos = end
			if kind != until {
				return "", syntaxErrorf(c.file, "unexpected @end%s", kind)
			}
			c.endStart = start
			return out.String(), nil
		}

		kind := c.src[c.pos+loc[2] : c.pos+loc[3]]
		inner, next, err := scanArgs(c.src, end)
		if err != nil {
			return "", syntaxErrorf(c.file, "@%s: %v", kind, err)
		}
		c.pos = next
		args, err := parseDirectiveArgs(inner)
		if err != nil {
			return "", syntaxErrorf(c.file, "@%s: %v", kind, err)
		}

		var text string
		switch kind {
		case "slot":
			text, err = c.slot(args)
		case "component":
			text, err = c.component(args)
		case "fill":
			err = c.fill(args, site)
		}
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}
}

func (c *directiveCompiler) slot(args *directiveArgs) (string, error) {
	if len(args.Values) > 0 {
		return "", syntaxErrorf(c.file, "@slot('%s') takes no positional values", args.Name)
	}
	decl := &slotDecl{ID: c.nextID(), Name: args.Name}
	for _, flag := range args.Flags {
		switch flag {
		case "required":
			decl.Required = true
		case "default":
			decl.Default = true
		default:
			return "", syntaxErrorf(c.file, "@slot('%s'): unknown flag %q", args.Name, flag)
		}
	}
	if decl.Default {
		if c.defaultSlot != "" {
			return "", syntaxErrorf(c.file, "only one slot may be marked 'default', found '%s' and '%s'", c.defaultSlot, decl.Name)
		}
		c.defaultSlot = decl.Name
	}
	kw, err := c.kwargs(args.Kwargs)
	if err != nil {
		return "", syntaxErrorf(c.file, "@slot('%s'): %v", args.Name, err)
	}

	body, err := c.compile("slot", nil)
	if err != nil {
		return "", err
	}
	decl.Block = slotBlockPrefix + strconv.Itoa(decl.ID)
	c.hoist(decl.Block, body)
	c.decls.slots[decl.ID] = decl

	return fmt.Sprintf("{{ __slot $ %d . %s }}", decl.ID, kw), nil
}

func (c *directiveCompiler) component(args *directiveArgs) (string, error) {
	if len(args.Flags) > 0 {
		return "", syntaxErrorf(c.file, "@component('%s'): unknown flag %q", args.Name, args.Flags[0])
	}
	kw, err := c.kwargs(args.Kwargs)
	if err != nil {
		return "", syntaxErrorf(c.file, "@component('%s'): %v", args.Name, err)
	}
	site := &componentSite{ID: c.nextID(), Component: normalizeName(args.Name)}

	bodyStart := c.pos
	body, err := c.compile("component", site)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(body) != "" {
		if len(site.Fills) > 0 {
			return "", syntaxErrorf(c.file, "@component('%s') mixes @fill blocks with loose content", args.Name)
		}
		fd := &fillDecl{
			Name:   defaultFillName,
			Block:  fillBlockPrefix + strconv.Itoa(c.nextID()),
			Source: c.src[bodyStart:c.endStart],
		}
		c.hoist(fd.Block, body)
		site.Fills = append(site.Fills, fd)
	}
	c.decls.sites[site.ID] = site

	var bodies strings.Builder
	bodies.WriteString("(__dict")
	for _, b := range site.bodies {
		fmt.Fprintf(&bodies, " %s %s", strconv.Quote(b.Key), b.Value)
	}
	bodies.WriteString(")")

	var positional strings.Builder
	positional.WriteString("(__args")
	for _, v := range args.Values {
		positional.WriteString(" ")
		positional.WriteString(operand(v))
	}
	positional.WriteString(")")

	return fmt.Sprintf("{{ __component $ %d . %s %s %s }}", site.ID, positional.String(), kw, bodies.String()), nil
}

func (c *directiveCompiler) fill(args *directiveArgs, site *componentSite) error {
	if site == nil {
		return syntaxErrorf(c.file, "@fill('%s') must be placed directly inside @component", args.Name)
	}
	if len(args.Flags)+len(args.Values) > 0 {
		return syntaxErrorf(c.file, "@fill('%s') takes only data, fallback and body arguments", args.Name)
	}
	for _, other := range site.Fills {
		if other.Name == args.Name {
			return syntaxErrorf(c.file, "@fill('%s') given twice in @component('%s')", args.Name, site.Component)
		}
	}

	fd := &fillDecl{Name: args.Name}
	var bodyExpr string
	for _, kw := range args.Kwargs {
		switch kw.Key {
		case "data", "fallback":
			name, ok := unquoteLiteral(kw.Value)
			if !ok || !reFlag.MatchString(name) {
				return syntaxErrorf(c.file, "@fill('%s'): %s must be a quoted variable name", args.Name, kw.Key)
			}
			if kw.Key == "data" {
				fd.DataVar = name
			} else {
				fd.FallbackVar = name
			}
		case "body":
			bodyExpr = operand(kw.Value)
		default:
			return syntaxErrorf(c.file, "@fill('%s'): unknown argument %q", args.Name, kw.Key)
		}
	}
	if fd.DataVar != "" && fd.DataVar == fd.FallbackVar {
		return syntaxErrorf(c.file, "@fill('%s'): data and fallback use the same name %q", args.Name, fd.DataVar)
	}

	id := c.nextID()
	start := c.pos
	body, err := c.compile("fill", nil)
	if err != nil {
		return err
	}

	fd.Source = c.src[start:c.endStart]
	fd.Blank = strings.TrimSpace(body) == ""
	fd.Block = fillBlockPrefix + strconv.Itoa(id)
	c.hoist(fd.Block, body)
	site.Fills = append(site.Fills, fd)

	if bodyExpr != "" {
		site.bodies = append(site.bodies, kwarg{Key: fd.Name, Value: bodyExpr})
	}
	return nil
}

func (c *directiveCompiler) kwargs(pairs []kwarg) (string, error) {
	keys := make([]any, 0, len(pairs)*2)
	for _, p := range pairs {
		keys = append(keys, p.Key, nil)
	}
	if _, err := buildKwargs(keys...); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("(__kwargs")
	for _, p := range pairs {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(p.Key))
		b.WriteString(" ")
		b.WriteString(operand(p.Value))
	}
	b.WriteString(")")
	return b.String(), nil
}

func (c *directiveCompiler) hoist(name, body string) {
	c.blocks = append(c.blocks, hoistedBlock{Name: name, Body: body})
}
