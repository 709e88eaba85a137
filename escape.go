package blade

import (
	"fmt"
	"html/template"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Escaper turns a value returned by slot content into HTML that is safe to
// splice into the page.
type Escaper interface {
	Escape(v any) template.HTML
}

// HTMLEscaper escapes everything that is not already template.HTML.
type HTMLEscaper struct{}

func (HTMLEscaper) Escape(v any) template.HTML {
	switch t := v.(type) {
	case nil:
		return ""
	case template.HTML:
		return t
	case string:
		return template.HTML(template.HTMLEscapeString(t))
	default:
		return template.HTML(template.HTMLEscapeString(fmt.Sprint(t)))
	}
}

// SanitizeEscaper keeps the markup allowed by Policy and drops the rest.
// A nil Policy uses bluemonday's UGC policy.
type SanitizeEscaper struct {
	Policy *bluemonday.Policy
}

func (s SanitizeEscaper) Escape(v any) template.HTML {
	switch t := v.(type) {
	case nil:
		return ""
	case template.HTML:
		return t
	}
	policy := s.Policy
	if policy == nil {
		policy = ugcPolicy()
	}
	return template.HTML(policy.Sanitize(fmt.Sprint(v)))
}

var (
	ugcPolicyOnce sync.Once
	ugcPolicyVal  *bluemonday.Policy
)

func ugcPolicy() *bluemonday.Policy {
	ugcPolicyOnce.Do(func() {
		ugcPolicyVal = bluemonday.UGCPolicy()
	})
	return ugcPolicyVal
}

func (p OutputPolicy) escaper() Escaper {
	if p == OutputSanitize {
		return SanitizeEscaper{}
	}
	return HTMLEscaper{}
}
