package blade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

var ValidFileExtensions = []string{".blade", ".tmpl", ".html", ".gohtml"}

const (
	sectionNamePrefix = "__section_"
	stackNamePrefix   = "__stack_"
	partialNamePrefix = "__include_"
)

// Engine holds loaded files.
type Engine struct {
	dirPrefix      string
	fs             fs.FS
	parsedFiles    map[string]*ParsedFile
	debugTemplates map[string]string
	unit           *compilation
	stale          bool
	components     map[string]*registeredComponent
	ids            atomic.Int64
	mu             sync.RWMutex
	FuncMap        template.FuncMap
	Config         Config
	// Escaper overrides the escaper chosen by Config.OutputPolicy.
	Escaper Escaper
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
}

// NewEngine creates a new engine pointing to a directory with files.
func NewEngine(dir string) *Engine {
	return NewEngineFS(os.DirFS(dir))
}

// NewEngineFS creates a new engine pointing to a filesystem.
// When using embed.Fs, pass the embedded folder as prefix.
func NewEngineFS(fs fs.FS, prefix ...string) *Engine {
	var dirPrefix string
	if len(prefix) > 0 {
		dirPrefix = prefix[0]
	}
	return &Engine{
		dirPrefix:      dirPrefix,
		fs:             fs,
		parsedFiles:    map[string]*ParsedFile{},
		debugTemplates: map[string]string{},
		components:     map[string]*registeredComponent{},
		FuncMap:        template.FuncMap{},
		Config:         DefaultConfig(),
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) escaper() Escaper {
	if e.Escaper != nil {
		return e.Escaper
	}
	return e.Config.OutputPolicy.escaper()
}

func (e *Engine) nextID() int {
	return int(e.ids.Add(1))
}

func (e *Engine) current() *compilation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unit
}

func (e *Engine) extensions() []string {
	if len(e.Config.Extensions) > 0 {
		return e.Config.Extensions
	}
	return ValidFileExtensions
}

// Load reads all template files from the fs.
// Files are parsed again only when new or modified; the whole set is
// recompiled when anything changed.
func (e *Engine) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	root := "."
	if e.dirPrefix != "" {
		root = e.dirPrefix
	}
	seen := map[string]struct{}{}
	changed := false

	err := fs.WalkDir(e.fs, root, func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(e.extensions(), ext) {
			return nil
		}

		stats, err := info.Info()
		if err != nil {
			return err
		}
		name := e.nameFromPath(path)
		seen[name] = struct{}{}

		if prev, ok := e.parsedFiles[name]; ok && !prev.ModTime.IsZero() &&
			prev.ModTime.Equal(stats.ModTime()) && prev.Size == stats.Size() {
			return nil
		}
		changed = true

		raw, err := fs.ReadFile(e.fs, path)
		if err != nil {
			return err
		}
		parsedFile, err := e.parseFile(name, string(raw))
		if err != nil {
			return err
		}
		parsedFile.ModTime = stats.ModTime()
		parsedFile.Size = stats.Size()
		e.parsedFiles[name] = parsedFile
		return nil
	})
	if err != nil {
		return err
	}

	for name := range e.parsedFiles {
		if _, ok := seen[name]; !ok {
			delete(e.parsedFiles, name)
			changed = true
		}
	}
	if changed {
		e.stale = true
	}
	if !e.stale && e.unit != nil {
		return nil
	}

	unit := newCompilation(e)
	debugTemplates := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(e.parsedFiles)) {
		tmpl, text, framed, err := e.compileFile(e.parsedFiles[name], e.parsedFiles)
		if err != nil {
			return err
		}
		unit.templates[name] = tmpl
		unit.framed[name] = framed
		unit.decls.merge(e.parsedFiles[name].Decls)
		debugTemplates[name] = text
	}

	e.unit = unit
	e.stale = false
	e.debugTemplates = debugTemplates
	e.logger().Debug("blade templates compiled",
		slog.Int("templates", len(unit.templates)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// compileFile flattens f with everything it extends or includes into one
// template set.
func (e *Engine) compileFile(f *ParsedFile, files map[string]*ParsedFile) (*template.Template, string, bool, error) {
	ctx := newCompileContext(files)
	bodyText, defText, err := f.ToTemplateString(ctx)
	if err != nil {
		return nil, "", false, err
	}

	for _, stackName := range slices.Sorted(maps.Keys(ctx.PushStacks)) {
		if _, ok := ctx.Stacks[stackName]; !ok {
			return nil, "", false, fmt.Errorf(`[%s] missing stack "%s"`, f.Name, stackName)
		}
	}

	defText += e.buildDefaultYieldContent(ctx)
	tmplText := defText + bodyText
	tmpl, err := template.New(f.Name).Funcs(e.FuncMap).Funcs(directiveFuncs()).Parse(tmplText)
	if err != nil {
		return nil, "", false, fmt.Errorf("[%s] %w", f.Name, err)
	}
	return tmpl, tmplText, ctx.Framed, nil
}

// compileStandalone compiles src into its own set, resolving includes
// against the loaded files.
func (e *Engine) compileStandalone(name, src string) (*compilation, error) {
	p, err := e.parseFile(name, src)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	files := maps.Clone(e.parsedFiles)
	e.mu.RUnlock()
	return e.compileParsed(p, files)
}

// compileParsed compiles p on its own against files, which it takes over.
func (e *Engine) compileParsed(p *ParsedFile, files map[string]*ParsedFile) (*compilation, error) {
	name := p.Name
	files[name] = p

	tmpl, text, framed, err := e.compileFile(p, files)
	if err != nil {
		return nil, err
	}
	unit := newCompilation(e)
	unit.standalone = true
	unit.templates[name] = tmpl
	unit.framed[name] = framed
	unit.decls.merge(p.Decls)
	// includes pulled in from loaded files keep their own slot declarations
	for _, f := range files {
		unit.decls.merge(f.Decls)
	}
	e.logger().Debug("blade fragment compiled", slog.String("name", name), slog.Int("size", len(text)))
	return unit, nil
}

// Render executes the template identified by entry (e.g., "pages/home") into writer with data.
func (e *Engine) Render(w io.Writer, entry string, data any) error {
	return e.RenderContext(context.Background(), w, entry, data)
}

// RenderContext is Render with a context.Context, passed to templ components
// and tracing. A RenderInput as data renders entry as a component.
func (e *Engine) RenderContext(ctx context.Context, w io.Writer, entry string, data any) error {
	entry = normalizeName(entry)
	if in, ok := data.(RenderInput); ok {
		return e.RenderComponent(ctx, w, entry, in)
	}

	unit := e.current()
	tmpl, owner := unit.lookup(entry)
	if tmpl == nil {
		return fmt.Errorf("%w: template %s not loaded", ErrTemplateNotFound, entry)
	}
	if !owner.framed[entry] {
		return tmpl.Execute(w, data)
	}

	vars, err := contextData(data)
	if err != nil {
		return err
	}
	frame := &renderFrame{
		engine:   e,
		unit:     owner,
		tmpl:     tmpl,
		ctx:      NewContext(vars).WithStdContext(ctx),
		behavior: e.Config.ContextBehavior.orDefault(""),
	}
	var buf bytes.Buffer
	if err := frame.executeTo(&buf, entry); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// contextData converts render data into the variables of a Context.
func contextData(data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return d, nil
	case *Context:
		return d.Flatten(), nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: render data %T: %w", ErrConfiguration, data, err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: render data %T is not an object", ErrConfiguration, data)
	}
	return out, nil
}

// Exists reports whether name is a loaded template.
func (e *Engine) Exists(name string) bool {
	tmpl, _ := e.current().lookup(normalizeName(name))
	return tmpl != nil
}

// GetDebugTemplates returns a map of all loaded templates and their content.
func (e *Engine) GetDebugTemplates() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.debugTemplates)
}

var (
	reExtend       = regexp.MustCompile(`@extends\(['"]([\w\-/. ]+)['"]\)`)                      // allow slashes for dirs
	reYield        = regexp.MustCompile(`@yield\(['"]([\w\-]+)['"](?:,\s*['"]([^)]*)['"])?\)`)   // @yield('name', 'default')
	reSectionStart = regexp.MustCompile(`@section\(['"]([\w\-]+)['"](?:,\s*['"]([^)]*)['"])?\)`) // @section('content', 'value')
	reSectionEnd   = regexp.MustCompile(`@endsection`)                                           // @endsection
	reStack        = regexp.MustCompile(`@stack\(['"]([\w\-]+)['"]\)`)                           // @stack('name')
	rePushStart    = regexp.MustCompile(`@push\(['"]([\w\-]+)['"]\)`)                            // @push('stack_name')
	rePushEnd      = regexp.MustCompile(`@endpush`)                                              // @endpush
	reInclude      = regexp.MustCompile(`@include\(['"]([\w\-/. ]+)['"](?:\s*,\s*([^)]+?))?\)`)  // @include('partial', .OtherData)
)

// parseFile parses Blade-like directives
func (e *Engine) parseFile(name string, raw string) (*ParsedFile, error) {
	p := &ParsedFile{
		Name:       name,
		Raw:        raw,
		Includes:   map[string]struct{}{},
		Yields:     map[string]string{},
		Sections:   map[string]string{},
		Stacks:     map[string]struct{}{},
		PushStacks: map[string][]string{},
		ParsedAt:   time.Now().UnixMilli(),
	}
	rest := raw

	if loc := reExtend.FindStringSubmatchIndex(raw); loc != nil {
		parentName := rest[loc[2]:loc[3]]
		p.Extends = normalizeName(parentName)
		rest = rest[:loc[0]] + rest[loc[1]:]
	}

	// convert @yield to template inclusion: @yield('name') => {{ template "__section_name" . }}
	rest = reYield.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reYield.FindStringSubmatch(m)
		if len(sm) >= 3 {
			yieldName := normalizeName(sm[1])
			p.Yields[yieldName] = sm[2]
			return fmt.Sprintf(`{{ template "%s%s" . }}`, sectionNamePrefix, yieldName)
		}
		return m
	})

	// convert @stack to template inclusion: @stack('name') => {{ template "__stack_name" . }}
	rest = reStack.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reStack.FindStringSubmatch(m)
		if len(sm) >= 2 {
			stackName := normalizeName(sm[1])
			p.Stacks[stackName] = struct{}{}
			return fmt.Sprintf(`{{ template "%s%s" . }}`, stackNamePrefix, stackName)
		}
		return m
	})

	// process includes: @include('partial') -> {{ template "__include_partial" (__include $ .) }}
	rest = reInclude.ReplaceAllStringFunc(rest, func(m string) string {
		sm := reInclude.FindStringSubmatch(m)
		if len(sm) >= 2 {
			partialName := normalizeName(sm[1])
			pipeline := ""
			if len(sm) >= 3 {
				pipeline = strings.TrimSpace(sm[2])
			}
			if pipeline == "" {
				pipeline = "(__include $ .)"
			}
			p.Includes[partialName] = struct{}{}
			return fmt.Sprintf(`{{ template "%s%s" %s }}`, partialNamePrefix, partialName, pipeline)
		}
		return m
	})

	// @component / @slot / @fill: bodies are hoisted into defines
	rest, blocks, decls, err := compileDirectives(name, rest, e.nextID)
	if err != nil {
		return nil, err
	}
	p.Blocks = blocks
	p.Decls = decls

	// Parse sections
	for {
		loc := reSectionStart.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		// extract section name
		sectionName := rest[loc[2]:loc[3]] // matched name
		if loc[5] > -1 {
			// @section('name', 'content')
			p.Sections[sectionName] = rest[loc[4]:loc[5]]
			rest = rest[:loc[0]] + rest[loc[1]:]
			continue
		}
		// find end
		endIdx := reSectionEnd.FindStringIndex(rest[loc[1]:])
		if endIdx == nil {
			return nil, fmt.Errorf("[%s] missing @endsection", p.Name)
		}
		contentStart := loc[1]
		contentEnd := loc[1] + endIdx[0]
		p.Sections[sectionName] = strings.TrimSpace(rest[contentStart:contentEnd])
		// remove the section from rest by replacing with empty string
		rest = rest[:loc[0]] + rest[contentEnd+len("@endsection"):] // remove tail including @endsection
	}

	// Parse push stacks
	for {
		loc := rePushStart.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		stackName := rest[loc[2]:loc[3]]
		endIdx := rePushEnd.FindStringIndex(rest[loc[1]:])
		if endIdx == nil {
			return nil, fmt.Errorf("[%s] missing @endpush", p.Name)
		}
		contentStart := loc[1]
		contentEnd := loc[1] + endIdx[0]
		p.PushStacks[stackName] = append(p.PushStacks[stackName], strings.TrimSpace(rest[contentStart:contentEnd]))
		rest = rest[:loc[0]] + rest[contentEnd+len("@endpush"):] // remove tail including @endpush
	}

	p.StandaloneBody = strings.TrimSpace(rest)

	return p, nil
}

// nameFromPath converts a filesystem path to a template name, relative to engine dir.
func (e *Engine) nameFromPath(path string) string {
	rel, err := filepath.Rel(e.dirPrefix, path)
	if err != nil {
		return filepath.Base(path)
	}
	// normalize separators and drop extension
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return normalizeName(rel)
}

// buildDefaultYieldContent builds default yield content for all unfilled yields.
func (e *Engine) buildDefaultYieldContent(ctx *CompileContext) string {
	var result strings.Builder
	for _, name := range slices.Sorted(maps.Keys(ctx.Yields)) {
		if _, ok := ctx.FilledSections[name]; !ok {
			writeDefine(&result, sectionNamePrefix+name, ctx.Yields[name].Default)
		}
	}
	return result.String()
}

// normalizeName: remove quotes/spaces and extensions, normalize slashes
func normalizeName(n string) string {
	n = strings.TrimSpace(n)
	n = strings.Trim(n, `"' `)
	// remove ext if present
	n = strings.TrimSuffix(n, filepath.Ext(n))
	n = filepath.ToSlash(n)
	return n
}
