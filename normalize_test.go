package blade

import (
	"context"
	"errors"
	"html/template"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeString(t *testing.T) {
	slot, err := Normalize("<b>hi</b>")
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", slot.Contents)

	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("&lt;b&gt;hi&lt;/b&gt;"), out)
}

func TestNormalizeHTML(t *testing.T) {
	slot, err := Normalize(template.HTML("<b>hi</b>"))
	require.NoError(t, err)

	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("<b>hi</b>"), out)
	require.NotNil(t, slot.Nodelist)
}

func TestNormalizeSlotIsReturnedAsIs(t *testing.T) {
	slot := NewSlot(func(SlotContext) (template.HTML, error) { return "x", nil })

	got, err := Normalize(slot)
	require.NoError(t, err)
	assert.Same(t, slot, got)
}

func TestNormalizeCallables(t *testing.T) {
	tests := map[string]any{
		"SlotFunc":        SlotFunc(func(SlotContext) (template.HTML, error) { return "<i>", nil }),
		"html with error": func(SlotContext) (template.HTML, error) { return "<i>", nil },
		"string":          func(SlotContext) string { return "<i>" },
		"string with err": func(SlotContext) (string, error) { return "<i>", nil },
		"any":             func(SlotContext) any { return "<i>" },
		"any with error":  func(SlotContext) (any, error) { return "<i>", nil },
		"html":            func(SlotContext) template.HTML { return "<i>" },
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			slot, err := Normalize(fn)
			require.NoError(t, err)
			assert.Nil(t, slot.Nodelist)

			out, err := slot.Call()
			require.NoError(t, err)
			if _, isString := fn.(func(SlotContext) string); isString {
				assert.Equal(t, template.HTML("&lt;i&gt;"), out)
			}
			assert.Contains(t, []template.HTML{"<i>", "&lt;i&gt;"}, out)

			again, err := Normalize(fn)
			require.NoError(t, err)
			assert.True(t, slot.Equal(again))
		})
	}
}

func TestNormalizeCallableEscapesNonHTML(t *testing.T) {
	slot, err := Normalize(func(SlotContext) any { return 42 })
	require.NoError(t, err)

	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("42"), out)
}

func TestNormalizeTempl(t *testing.T) {
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<u>t</u>")
		return err
	})

	slot, err := Normalize(c)
	require.NoError(t, err)
	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("<u>t</u>"), out)

	errRender := errors.New("render failed")
	failing, err := Normalize(templ.ComponentFunc(func(context.Context, io.Writer) error { return errRender }))
	require.NoError(t, err)
	_, err = failing.Call()
	assert.Same(t, errRender, err)
}

func TestNormalizeRejects(t *testing.T) {
	var nilSlot *Slot
	var nilFragment *Fragment
	tests := map[string]any{
		"nil":          nil,
		"nil slot":     nilSlot,
		"nil fragment": nilFragment,
		"int":          42,
		"wrong func":   func(string) string { return "" },
	}
	for name, v := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(v)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestEngineNormalizeUsesEscaper(t *testing.T) {
	eng := NewEngineFS(nil)
	eng.Escaper = SanitizeEscaper{}

	slot, err := eng.Normalize("<b>ok</b><script>x</script>")
	require.NoError(t, err)
	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("<b>ok</b>"), out)
}
