package template_test

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	blade "github.com/dangdungcntt/go-blade-slots"
)

// makeViews builds a page rendering a card component per item, with enough
// fills to make slot resolution show up in the profile.
func makeViews() fstest.MapFS {
	return fstest.MapFS{
		"components/card.blade": {Data: []byte(`<article>
  <h2>{{ .title }}</h2>
  <div>@slot('body', default)<i>empty</i>@endslot</div>
  <footer>@slot('footer', index=.index)#{{ .index }}@endslot</footer>
</article>`)},
		"components/badge.blade": {Data: []byte(`<span class="badge">@slot('label', required)@endslot</span>`)},
		"pages/list.blade": {Data: []byte(`<ul>
{{ range .Items }}
  <li>@component('card', title=.title, index=.index)
    @fill('body')<p>{{ .title }}</p>@endfill
    @fill('footer', data='d', fallback='fb'){{ .fb.HTML }} @component('badge')@fill('label'){{ .d.index }}@endfill@endcomponent@endfill
  @endcomponent</li>
{{ end }}
</ul>`)},
	}
}

func benchData() map[string]any {
	items := make([]map[string]any, 100)
	for i := range items {
		items[i] = map[string]any{"title": "Item number " + template.HTMLEscaper(i), "index": i}
	}
	return map[string]any{"Items": items}
}

func newEngine(b *testing.B) *blade.Engine {
	eng := blade.NewEngineFS(makeViews())
	require.NoError(b, eng.Load(), "load views failed")
	return eng
}

// 1) Render a page whose fills are template fragments, cached per compiled set
func Benchmark_Blade_PageWithComponents(b *testing.B) {
	eng := newEngine(b)
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := eng.Render(&buf, "pages/list", data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}

// 2) Render a component from Go with string fills
func Benchmark_Blade_ComponentStringFills(b *testing.B) {
	eng := newEngine(b)
	in := blade.RenderInput{
		Kwargs: map[string]any{"title": "Card", "index": 1},
		Slots:  map[string]any{"body": "<p>body</p>", "footer": "footer"},
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := eng.RenderComponent(context.Background(), &buf, "card", in); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}

// 3) Render a component from Go with function fills that use the fallback
func Benchmark_Blade_ComponentFuncFills(b *testing.B) {
	eng := newEngine(b)
	in := blade.RenderInput{
		Kwargs: map[string]any{"title": "Card", "index": 1},
		Slots: map[string]any{
			"body": func(ctx blade.SlotContext) string { return "body" },
			"footer": func(ctx blade.SlotContext) (template.HTML, error) {
				fb, err := ctx.Fallback.HTML()
				return "<b>" + fb + "</b>", err
			},
		},
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			if err := eng.RenderComponent(context.Background(), &buf, "card", in); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}

// 4) Normalize the same fill content on every iteration
func Benchmark_Blade_Normalize(b *testing.B) {
	fills := []any{
		"plain text",
		template.HTML("<b>markup</b>"),
		func(ctx blade.SlotContext) string { return fmt.Sprint(ctx.Data["n"]) },
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, fill := range fills {
			if _, err := blade.Normalize(fill); err != nil {
				b.Fatalf("normalize failed: %v", err)
			}
		}
	}
}

// 5) Load a fresh engine and render on every iteration (uncached parse)
func Benchmark_Blade_LoadEachTime(b *testing.B) {
	views := makeViews()
	data := benchData()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		var buf bytes.Buffer
		for pb.Next() {
			buf.Reset()
			eng := blade.NewEngineFS(views)
			if err := eng.Load(); err != nil {
				b.Fatalf("load failed: %v", err)
			}
			if err := eng.Render(&buf, "pages/list", data); err != nil {
				b.Fatalf("render failed: %v", err)
			}
		}
	})
}
