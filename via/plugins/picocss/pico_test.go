package picocss_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-via/testbench/via"
	"github.com/go-via/testbench/via/h"
	"github.com/go-via/testbench/via/plugins/picocss"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Theme type ---

func TestPicoTheme_Constants(t *testing.T) {
	tests := []struct {
		name     string
		constant picocss.PicoTheme
		want     string
	}{
		{"Amber", picocss.PicoThemeAmber, "amber"},
		{"Blue", picocss.PicoThemeBlue, "blue"},
		{"Cyan", picocss.PicoThemeCyan, "cyan"},
		{"Fuchsia", picocss.PicoThemeFuchsia, "fuchsia"},
		{"Green", picocss.PicoThemeGreen, "green"},
		{"Grey", picocss.PicoThemeGrey, "grey"},
		{"Indigo", picocss.PicoThemeIndigo, "indigo"},
		{"Jade", picocss.PicoThemeJade, "jade"},
		{"Lime", picocss.PicoThemeLime, "lime"},
		{"Orange", picocss.PicoThemeOrange, "orange"},
		{"Pink", picocss.PicoThemePink, "pink"},
		{"Pumpkin", picocss.PicoThemePumpkin, "pumpkin"},
		{"Purple", picocss.PicoThemePurple, "purple"},
		{"Red", picocss.PicoThemeRed, "red"},
		{"Sand", picocss.PicoThemeSand, "sand"},
		{"Slate", picocss.PicoThemeSlate, "slate"},
		{"Violet", picocss.PicoThemeViolet, "violet"},
		{"Yellow", picocss.PicoThemeYellow, "yellow"},
		{"Zinc", picocss.PicoThemeZinc, "zinc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.constant.String())
		})
	}
}

func TestAllPicoThemes_NoDuplicates(t *testing.T) {
	assert.Len(t, picocss.AllPicoThemes, 19)
	seen := make(map[string]bool)
	for _, theme := range picocss.AllPicoThemes {
		assert.False(t, seen[string(theme)], "duplicate theme: %s", theme)
		seen[string(theme)] = true
	}
}

// --- Integration ---

// fakeCSS is long enough for the compression middleware to kick in.
var fakeCSS = strings.Repeat(":root{--pico-color:#000}\n", 100)

type fakeSource struct {
	calls atomic.Int32
	fail  bool
}

func (f *fakeSource) load(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("cdn down")
	}
	return []byte("/* " + url + " */\n" + fakeCSS), nil
}

func registerPlugin(t *testing.T, opts ...picocss.PicoOption) (*fakeSource, *httptest.Server) {
	t.Helper()
	src := &fakeSource{}
	v := via.New().Config(via.Options{
		LogOutput: io.Discard,
		Plugins:   []via.Plugin{picocss.New(append(opts, picocss.WithSource(src.load))...)},
	})
	v.Page("/", func(c *via.Composition) {
		c.View(func(ctx *via.Context) h.H { return h.Div(h.Text("x")) })
	})
	server := httptest.NewServer(v.Handler())
	t.Cleanup(func() {
		server.Close()
		_ = v.Shutdown(context.Background())
	})
	return src, server
}

func get(t *testing.T, url string) (int, http.Header, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}

func TestNew_NoOptionsDefaultsToSingleAmber(t *testing.T) {
	_, server := registerPlugin(t)

	code, _, _ := get(t, server.URL+"/_plugins/picocss/theme/amber")
	assert.Equal(t, http.StatusOK, code)

	code, _, _ = get(t, server.URL+"/_plugins/picocss/theme/blue")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNew_EmptyThemesList_DefaultsToSingleAmber(t *testing.T) {
	_, server := registerPlugin(t, picocss.WithThemes(nil))

	code, _, _ := get(t, server.URL+"/_plugins/picocss/theme/amber")
	assert.Equal(t, http.StatusOK, code)
}

func TestNew_WithInvalidDefaultTheme(t *testing.T) {
	_, server := registerPlugin(t,
		picocss.WithThemes([]picocss.PicoTheme{picocss.PicoThemeBlue}),
		picocss.WithDefaultTheme(picocss.PicoThemeRed),
	)

	code, _, _ := get(t, server.URL+"/_plugins/picocss/theme/red")
	assert.Equal(t, http.StatusNotFound, code)
	_, _, body := get(t, server.URL+"/")
	assert.Contains(t, body, "/_plugins/picocss/theme/blue")
}

func TestPlugin_ServesThemeFromSource(t *testing.T) {
	_, server := registerPlugin(t)

	code, header, body := get(t, server.URL+"/_plugins/picocss/theme/amber")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "text/css", header.Get("Content-Type"))
	assert.Contains(t, body, "pico.amber.min.css")
}

func TestPlugin_ClasslessUsesClasslessBuild(t *testing.T) {
	_, server := registerPlugin(t, picocss.WithClassless())

	_, _, page := get(t, server.URL+"/")
	assert.Contains(t, page, `href="/_plugins/picocss/theme/classless/amber"`)

	_, _, body := get(t, server.URL+"/_plugins/picocss/theme/classless/amber")
	assert.Contains(t, body, "pico.classless.amber.min.css")
}

func TestPlugin_CachesAfterFirstFetch(t *testing.T) {
	src, server := registerPlugin(t)

	for range 3 {
		code, _, _ := get(t, server.URL+"/_plugins/picocss/theme/amber")
		require.Equal(t, http.StatusOK, code)
	}

	assert.EqualValues(t, 1, src.calls.Load())
}

func TestPlugin_SourceFailureIsBadGateway(t *testing.T) {
	src := &fakeSource{fail: true}
	v := via.New().Config(via.Options{
		LogOutput: io.Discard,
		Plugins:   []via.Plugin{picocss.New(picocss.WithSource(src.load))},
	})
	server := httptest.NewServer(v.HTTPServeMux())
	defer server.Close()

	code, _, _ := get(t, server.URL+"/_plugins/picocss/theme/amber")
	assert.Equal(t, http.StatusBadGateway, code)

	src.fail = false
	code, _, _ = get(t, server.URL+"/_plugins/picocss/theme/amber")
	assert.Equal(t, http.StatusOK, code, "failures are not cached")
}

// --- Signal and binding ---

func TestPlugin_InitializesSignals(t *testing.T) {
	_, server := registerPlugin(t)

	_, _, body := get(t, server.URL+"/")
	assert.Contains(t, body, `data-signals`)
	assert.Contains(t, body, `_picoTheme`)
	assert.Contains(t, body, `_picoDarkMode`)
}

func TestPlugin_DefaultThemeInSignal(t *testing.T) {
	_, server := registerPlugin(t,
		picocss.WithThemes([]picocss.PicoTheme{picocss.PicoThemePurple, picocss.PicoThemeAmber}),
		picocss.WithDefaultTheme(picocss.PicoThemePurple),
	)

	_, _, body := get(t, server.URL+"/")
	assert.Contains(t, body, `_picoTheme: &#39;purple&#39;`)
	assert.Contains(t, body, `href="/_plugins/picocss/theme/purple"`)
}

func TestPlugin_BindsDataThemeToDarkModeSignal(t *testing.T) {
	_, server := registerPlugin(t)

	_, _, body := get(t, server.URL+"/")
	assert.Contains(t, body, `data-effect`)
	assert.Contains(t, body, `dataset.theme = $_picoDarkMode ? &#39;dark&#39; : &#39;light&#39;`)
}

// --- Dark mode options ---

func TestPlugin_DarkModeOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []picocss.PicoOption
		want string
	}{
		{"system", nil, "prefers-color-scheme"},
		{"dark", []picocss.PicoOption{picocss.WithDarkMode()}, "_picoDarkMode: true"},
		{"light", []picocss.PicoOption{picocss.WithLightMode()}, "_picoDarkMode: false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, server := registerPlugin(t, tt.opts...)
			_, _, body := get(t, server.URL+"/")
			assert.Contains(t, body, tt.want)
		})
	}
}

// --- ETag ---

func TestPlugin_ThemeAsset_Returns304ForMatchingETag(t *testing.T) {
	_, server := registerPlugin(t)

	_, header, _ := get(t, server.URL+"/_plugins/picocss/theme/amber")
	etag := header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/_plugins/picocss/theme/amber", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

// --- Compression ---

func TestPlugin_ThemeAsset_ServesGzipWhenAccepted(t *testing.T) {
	_, server := registerPlugin(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/_plugins/picocss/theme/amber", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	gr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	defer gr.Close()
	css, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Contains(t, string(css), fakeCSS)
}

// --- Color classes ---

func TestPlugin_ColorClasses(t *testing.T) {
	_, server := registerPlugin(t, picocss.WithColorClasses())

	_, _, page := get(t, server.URL+"/")
	assert.Contains(t, page, `href="/_plugins/picocss/color-classes"`)

	code, header, body := get(t, server.URL+"/_plugins/picocss/color-classes")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, header.Get("ETag"))
	assert.Contains(t, body, "pico.colors.min.css")
}

func TestPlugin_ColorClassesDisabledByDefault(t *testing.T) {
	_, server := registerPlugin(t)

	code, _, _ := get(t, server.URL+"/_plugins/picocss/color-classes")
	assert.Equal(t, http.StatusNotFound, code)
}
