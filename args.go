package blade

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type kwarg struct {
	Key   string
	Value string
}

// directiveArgs is the argument list of a directive: a quoted name followed
// by bare flags, positional operands and key=value pairs.
type directiveArgs struct {
	Name   string
	Flags  []string
	Values []string
	Kwargs []kwarg
}

var (
	reKwarg = regexp.MustCompile(`^([A-Za-z_][\w-]*(?::[A-Za-z_][\w-]*)?)\s*=\s*(.+)$`) // key=value, group:key=value
	reFlag  = regexp.MustCompile(`^[A-Za-z_]\w*$`)                                       // required, default
)

// scanArgs returns the text between the '(' that ends at start and its
// matching ')', and the offset right after the ')'.
func scanArgs(src string, start int) (string, int, error) {
	depth := 1
	var quote byte
	for i := start; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			if ch == '\\' && quote != '`' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[start:i], i + 1, nil
			}
		}
	}
	return "", 0, errors.New("unclosed argument list")
}

// splitArgs splits on commas that are outside quotes and parentheses.
func splitArgs(s string) []string {
	var (
		parts []string
		depth int
		quote byte
		last  int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			if ch == '\\' && quote != '`' {
				i++
				continue
			}
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDirectiveArgs(inner string) (*directiveArgs, error) {
	a := &directiveArgs{}
	for i, part := range splitArgs(inner) {
		if i == 0 {
			name, ok := unquoteLiteral(part)
			if !ok || strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("first argument must be a quoted name, got %s", part)
			}
			a.Name = name
			continue
		}
		if m := reKwarg.FindStringSubmatch(part); m != nil {
			a.Kwargs = append(a.Kwargs, kwarg{Key: m[1], Value: strings.TrimSpace(m[2])})
			continue
		}
		if reFlag.MatchString(part) && !isConstant(part) {
			a.Flags = append(a.Flags, part)
			continue
		}
		a.Values = append(a.Values, part)
	}
	if a.Name == "" {
		return nil, errors.New("missing name")
	}
	return a, nil
}

func unquoteLiteral(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	switch first, last := s[0], s[len(s)-1]; {
	case first == '\'' && last == '\'':
		return s[1 : len(s)-1], true
	case first == '`' && last == '`':
		return s[1 : len(s)-1], true
	case first == '"' && last == '"':
		v, err := strconv.Unquote(s)
		return v, err == nil
	}
	return "", false
}

// operand turns a directive value into a parenthesized template operand.
// Single-quoted strings become Go string literals.
func operand(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = strconv.Quote(v[1 : len(v)-1])
	}
	return "(" + v + ")"
}

func isConstant(s string) bool {
	switch s {
	case "true", "false", "nil":
		return true
	}
	return false
}

func buildArgs(args ...any) []any {
	return args
}

// buildKwargs turns key/value pairs into a map. Keys written as group:key are
// collected into a nested map under group.
func buildKwargs(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of keyword arguments", ErrTemplateSyntax)
	}
	out := make(map[string]any, len(pairs)/2)
	groups := map[string]bool{}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: keyword %v is not a string", ErrTemplateSyntax, pairs[i])
		}
		group, sub, grouped := strings.Cut(key, ":")
		if !grouped {
			if _, dup := out[key]; dup {
				return nil, fmt.Errorf("%w: argument %q given twice", ErrTemplateSyntax, key)
			}
			out[key] = pairs[i+1]
			continue
		}
		m, exists := out[group].(map[string]any)
		if _, taken := out[group]; taken && (!exists || !groups[group]) {
			return nil, fmt.Errorf("%w: argument %q conflicts with %q", ErrTemplateSyntax, key, group)
		}
		if !exists {
			m = map[string]any{}
			out[group] = m
			groups[group] = true
		}
		if _, dup := m[sub]; dup {
			return nil, fmt.Errorf("%w: argument %q given twice", ErrTemplateSyntax, key)
		}
		m[sub] = pairs[i+1]
	}
	return out, nil
}

func buildDict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of dict arguments", ErrTemplateSyntax)
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: dict key %v is not a string", ErrTemplateSyntax, pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}
