package blade

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, eng *Engine) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HTMLRender = NewHTMLRender(eng)
	return r
}

func TestHTMLRenderPage(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"components/card.blade": `<h2>{{ .title }}</h2>@slot('body', default)@endslot`,
		"pages/home.blade":      `@component('card', title=.title)Hi {{ .name }}@endcomponent`,
	})
	r := newTestRouter(t, eng)
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "pages/home", gin.H{"title": "Home", "name": "Ann"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<h2>Home</h2>Hi Ann", w.Body.String())
}

func TestHTMLRenderView(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"components/card.blade": `<h2>{{ .title }}</h2>@slot('body', default)@endslot`,
	})
	r := newTestRouter(t, eng)
	r.GET("/card", func(c *gin.Context) {
		c.HTML(http.StatusOK, "", NewComponentView("card", RenderInput{
			Kwargs: map[string]any{"title": "Card"},
			Slots:  map[string]any{"default": "<body>"},
		}))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/card", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h2>Card</h2>&lt;body&gt;", w.Body.String())
}

func TestNewView(t *testing.T) {
	v := NewView("pages/home", gin.H{"a": 1})
	assert.Equal(t, "pages/home", v.Name())
	assert.Equal(t, http.StatusOK, v.Status())
	assert.Equal(t, gin.H{"a": 1}, v.Data())

	assert.Equal(t, http.StatusNotFound, NewView("404", nil, http.StatusNotFound).Status())
}

func TestRenderKeepsContentType(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"page.blade": `x`})
	w := httptest.NewRecorder()
	w.Header().Set("Content-Type", "text/plain")

	r := NewHTMLRender(eng).Instance("page", nil)
	require.NoError(t, r.Render(w))
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "x", w.Body.String())
}
