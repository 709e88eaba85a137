package blade

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type ParsedFile struct {
	Name string
	// Raw is the raw file content
	Raw string
	// Extends is the file to extend
	Extends string
	// Includes is a set of files to include
	Includes map[string]struct{}
	// Yields is a map of section names to default content
	Yields map[string]string
	// Sections is a map of section names to content
	Sections map[string]string
	// Stacks is a map of stack names
	Stacks map[string]struct{}
	// PushStacks is a map of stack names to values to push
	PushStacks map[string][]string
	// Blocks are slot fallbacks and fill bodies hoisted out of the body
	Blocks []hoistedBlock
	// Decls holds the @slot and @component declarations of the file
	Decls *declTable
	// StandaloneBody is the body of the file without sections and includes
	StandaloneBody string
	// ParsedAt is the time when the file was parsed in unix milliseconds
	ParsedAt int64
	// ModTime and Size are the file stats at parse time
	ModTime time.Time
	Size    int64
}

// ToTemplateString converts the parsed file to template text: the body to
// execute and the defines it needs.
func (p *ParsedFile) ToTemplateString(ctx *CompileContext) (string, string, error) {
	var defs strings.Builder

	for _, stackName := range slices.Sorted(maps.Keys(p.PushStacks)) {
		// We need push to stack in reverse order, since we are compiling from child to parent
		values := p.PushStacks[stackName]
		size := len(values)
		for i := range values {
			ctx.PushStacks[stackName] = append(ctx.PushStacks[stackName], values[size-1-i])
		}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Stacks)) {
		if fileName, ok := ctx.Stacks[name]; ok {
			return "", "", fmt.Errorf(`[%s] duplicate stack name "%s", already defined in file "%s"`, p.Name, name, fileName)
		}
		ctx.Stacks[name] = p.Name
		// Pop from stack
		var content strings.Builder
		pushed := ctx.PushStacks[name]
		for i := range pushed {
			content.WriteString(pushed[len(pushed)-1-i])
		}
		writeDefine(&defs, stackNamePrefix+name, content.String())
	}

	for _, name := range slices.Sorted(maps.Keys(p.Sections)) {
		if _, ok := ctx.FilledSections[name]; ok {
			continue
		}
		writeDefine(&defs, sectionNamePrefix+name, p.Sections[name])
		ctx.FilledSections[name] = struct{}{}
	}

	for _, name := range slices.Sorted(maps.Keys(p.Yields)) {
		if info, ok := ctx.Yields[name]; ok {
			return "", "", fmt.Errorf(`[%s] duplicate yield name "%s", already defined in file "%s"`, p.Name, name, info.FileName)
		}
		ctx.Yields[name] = YieldInfo{
			Name:     name,
			FileName: p.Name,
			Default:  p.Yields[name],
		}
	}

	for _, b := range p.Blocks {
		if _, ok := ctx.Blocks[b.Name]; ok {
			continue
		}
		ctx.Blocks[b.Name] = struct{}{}
		writeDefine(&defs, b.Name, b.Body)
	}
	if !p.Decls.empty() {
		ctx.Framed = true
	}

	body := p.StandaloneBody
	if p.Extends != "" {
		if _, ok := ctx.Extended[p.Name]; ok {
			return "", "", fmt.Errorf(`[%s] circular @extends`, p.Name)
		}
		ctx.Extended[p.Name] = struct{}{}
		parent, found := ctx.Files[p.Extends]
		if !found {
			return "", "", fmt.Errorf(`[%s] template "%s" not found to extends`, p.Name, p.Extends)
		}
		parentBody, parentDefs, err := parent.ToTemplateString(ctx)
		if err != nil {
			return "", "", err
		}
		defs.WriteString(parentDefs)
		body = parentBody
	}

	for _, partialName := range slices.Sorted(maps.Keys(p.Includes)) {
		if _, ok := ctx.FilledIncludes[partialName]; ok {
			continue
		}
		ctx.FilledIncludes[partialName] = struct{}{}
		partial, found := ctx.Files[partialName]
		if !found {
			return "", "", fmt.Errorf(`[%s] template "%s" not found to include`, p.Name, partialName)
		}
		partialBody, partialDefs, err := partial.ToTemplateString(ctx)
		if err != nil {
			return "", "", err
		}
		defs.WriteString(partialDefs)
		writeDefine(&defs, partialNamePrefix+partialName, partialBody)
	}

	return body, defs.String(), nil
}

func writeDefine(b *strings.Builder, name, content string) {
	b.WriteString(`{{ define "`)
	b.WriteString(name)
	b.WriteString(`" }}`)
	b.WriteString(content)
	b.WriteString("{{ end }}")
}
