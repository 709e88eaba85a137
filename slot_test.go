package blade

import (
	"errors"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCallMinimal(t *testing.T) {
	slot := NewSlot(func(ctx SlotContext) (template.HTML, error) {
		assert.Nil(t, ctx.Context)
		assert.Nil(t, ctx.Context.Root())
		assert.Equal(t, map[string]any{}, ctx.Data)
		assert.Nil(t, ctx.Fallback)
		return "FROM_INSIDE_SLOT_FN", nil
	})

	out, err := slot.Call()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("FROM_INSIDE_SLOT_FN"), out)
}

func TestSlotInvokeWithData(t *testing.T) {
	slotData := map[string]any{
		"data1": "abc",
		"data2": map[string]any{"hello": "world", "one": 123},
	}
	slot := NewSlot(func(ctx SlotContext) (template.HTML, error) {
		require.NotNil(t, ctx.Context)
		assert.Equal(t, "1", ctx.Context.Lookup("the_arg", nil))
		assert.Equal(t, 3, ctx.Context.Lookup("the_kwarg", nil))
		assert.Equal(t, map[string]any{}, ctx.Context.Lookup("kwargs", nil))
		assert.Equal(t, "def", ctx.Context.Lookup("abc", nil))
		assert.Equal(t, slotData, ctx.Data)
		assert.Equal(t, TextFallback("SLOT_DEFAULT"), ctx.Fallback)
		return template.HTML("FROM_INSIDE_SLOT_FN | " + ctx.Fallback.String()), nil
	})
	rc := NewContext(map[string]any{
		"the_arg":   "1",
		"the_kwarg": 3,
		"kwargs":    map[string]any{},
		"abc":       "def",
	})

	out, err := slot.Invoke(slotData, "SLOT_DEFAULT", rc)
	require.NoError(t, err)
	assert.Equal(t, "FROM_INSIDE_SLOT_FN | SLOT_DEFAULT", collapse(string(out)))

	out, err = slot.Call(WithData(slotData), WithFallback("SLOT_DEFAULT"), WithContext(rc))
	require.NoError(t, err)
	assert.Equal(t, "FROM_INSIDE_SLOT_FN | SLOT_DEFAULT", collapse(string(out)))
}

func TestSlotInvokeRejectsUnknownFallback(t *testing.T) {
	slot := NewSlot(func(SlotContext) (template.HTML, error) { return "", nil })

	_, err := slot.Invoke(nil, 42, nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestSlotInvokeIsRepeatable(t *testing.T) {
	calls := 0
	slot := NewSlot(func(ctx SlotContext) (template.HTML, error) {
		calls++
		return template.HTML(ctx.Data["n"].(string)), nil
	})

	for _, n := range []string{"one", "two", "one"} {
		out, err := slot.Call(WithData(map[string]any{"n": n}))
		require.NoError(t, err)
		assert.Equal(t, template.HTML(n), out)
	}
	assert.Equal(t, 3, calls)
}

func TestSlotInvokeReturnsErrorUnchanged(t *testing.T) {
	errBoom := errors.New("boom")
	slot := NewSlot(func(SlotContext) (template.HTML, error) { return "", errBoom })

	_, err := slot.Call()
	assert.Same(t, errBoom, err)
}

func TestSlotEqual(t *testing.T) {
	fn := SlotFunc(func(SlotContext) (template.HTML, error) { return "x", nil })
	other := SlotFunc(func(SlotContext) (template.HTML, error) { return "y", nil })

	a := NewSlot(fn)
	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(NewSlot(fn)))
	assert.False(t, a.Equal(NewSlot(other)))
	assert.False(t, a.Equal(nil))

	s1, err := Normalize("text")
	require.NoError(t, err)
	s2, err := Normalize("text")
	require.NoError(t, err)
	s3, err := Normalize("other")
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.True(t, s1.Equal(s2))
	assert.False(t, s1.Equal(s3))
	assert.False(t, s1.Equal(a))
}

func TestSlotFallbackIsLazy(t *testing.T) {
	renders := 0
	fb := newSlotFallback(func() (template.HTML, error) {
		renders++
		return "<i>fallback</i>", nil
	})
	assert.Equal(t, 0, renders)

	assert.Equal(t, "<i>fallback</i>", fb.String())
	out, err := fb.HTML()
	require.NoError(t, err)
	assert.Equal(t, template.HTML("<i>fallback</i>"), out)
	assert.Equal(t, 2, renders)
	assert.NoError(t, fb.Err())
}

func TestSlotFallbackKeepsFirstError(t *testing.T) {
	errFirst := errors.New("first")
	fb := newSlotFallback(func() (template.HTML, error) { return "", errFirst })

	assert.Equal(t, "", fb.String())
	_, _ = fb.HTML()
	assert.Same(t, errFirst, fb.Err())
}
