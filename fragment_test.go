package blade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFragment(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"partials/star.blade": `*`,
	})

	fr, err := eng.ParseFragment(`@include('partials/star'){{ .name }}`)
	require.NoError(t, err)
	assert.Equal(t, `@include('partials/star'){{ .name }}`, fr.String())
	require.NotNil(t, fr.Nodelist())

	out, err := fr.Render(NewContext(map[string]any{"name": "<x>"}))
	require.NoError(t, err)
	assert.Equal(t, "*&lt;x&gt;", string(out))

	out, err = fr.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "*", string(out))
}

func TestParseFragmentSyntaxError(t *testing.T) {
	eng := newTestEngine(t, map[string]string{})

	_, err := eng.ParseFragment(`@slot('a')`)
	assert.ErrorIs(t, err, ErrTemplateSyntax)
}

func TestFragmentAsFill(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"components/row.blade": `<tr>@slot('cell', value=.v)-@endslot</tr>`,
	})
	fr, err := eng.ParseFragment(`<td>{{ .value }}</td>`)
	require.NoError(t, err)

	slot, err := eng.Normalize(fr)
	require.NoError(t, err)
	assert.Equal(t, `<td>{{ .value }}</td>`, slot.Contents)

	out, err := renderComponent(t, eng, "row", RenderInput{
		Kwargs: map[string]any{"v": 7},
		Slots:  map[string]any{"cell": fr},
	})
	require.NoError(t, err)
	assert.Equal(t, "<tr><td>7</td></tr>", out)

	again, err := eng.Normalize(fr)
	require.NoError(t, err)
	assert.True(t, slot.Equal(again))
}

func TestFragmentWithComponent(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"components/badge.blade": `<span>@slot('label', default)@endslot</span>`,
	})

	fr, err := eng.ParseFragment(`@component('badge'){{ .text }}@endcomponent`)
	require.NoError(t, err)

	out, err := fr.Render(NewContext(map[string]any{"text": "new"}))
	require.NoError(t, err)
	assert.Equal(t, "<span>new</span>", string(out))
}
