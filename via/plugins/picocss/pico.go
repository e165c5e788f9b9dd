// Package picocss provides a PicoCSS plugin for the Via framework.
//
// # Quick Start
//
//	v := via.New()
//	v.Config(via.Options{Plugins: []via.Plugin{
//	    picocss.New(
//	        picocss.WithThemes([]picocss.PicoTheme{picocss.PicoThemeBlue, picocss.PicoThemePurple}),
//	        picocss.WithDefaultTheme(picocss.PicoThemeBlue),
//	        picocss.WithColorClasses(),
//	    ),
//	}})
//
// # Changing Theme
//
// Assign the $_picoTheme signal:
//
//	h.Button(
//	    h.Text("Purple Theme"),
//	    h.Data("on:click", fmt.Sprintf("$_picoTheme = '%s'", picocss.PicoThemePurple)),
//	)
//
// # Dark Mode
//
// Toggle $_picoDarkMode to switch between light/dark:
//
//	h.Button(
//	    h.Text("Toggle"),
//	    h.Data("on:click", "$_picoDarkMode = !$_picoDarkMode"),
//	)
//
// By default the initial value comes from the browser's prefers-color-scheme
// media query. Use WithDarkMode() or WithLightMode() to override.
//
// Stylesheets are fetched from the CDN on first request and cached in memory.
package picocss

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-via/testbench/via"
	"github.com/go-via/testbench/via/h"
	"github.com/pkg/errors"
)

// CDN configuration
const (
	cdnVersion = "2.1.1"
	cdnBase    = "https://cdn.jsdelivr.net/npm/@picocss/pico@" + cdnVersion + "/css/"
)

const (
	cdnThemeURL          = cdnBase + "pico.%s.min.css"
	cdnClasslessThemeURL = cdnBase + "pico.classless.%s.min.css"
	cdnColorClassesURL   = cdnBase + "pico.colors.min.css"
)

const (
	pluginPathPrefix = "/_plugins/picocss/"
	themePath        = pluginPathPrefix + "theme/"
	colorClassesPath = pluginPathPrefix + "color-classes"
)

// maxCSSBodySize caps CDN response bodies to prevent excessive memory use.
const maxCSSBodySize = 512 * 1024

const fetchTimeout = 10 * time.Second

// PicoTheme represents a Pico CSS color theme.
type PicoTheme string

// Predefined Pico CSS themes. Use these with WithThemes() and WithDefaultTheme().
const (
	PicoThemeAmber   PicoTheme = "amber"
	PicoThemeBlue    PicoTheme = "blue"
	PicoThemeCyan    PicoTheme = "cyan"
	PicoThemeFuchsia PicoTheme = "fuchsia"
	PicoThemeGreen   PicoTheme = "green"
	PicoThemeGrey    PicoTheme = "grey"
	PicoThemeIndigo  PicoTheme = "indigo"
	PicoThemeJade    PicoTheme = "jade"
	PicoThemeLime    PicoTheme = "lime"
	PicoThemeOrange  PicoTheme = "orange"
	PicoThemePink    PicoTheme = "pink"
	PicoThemePumpkin PicoTheme = "pumpkin"
	PicoThemePurple  PicoTheme = "purple"
	PicoThemeRed     PicoTheme = "red"
	PicoThemeSand    PicoTheme = "sand"
	PicoThemeSlate   PicoTheme = "slate"
	PicoThemeViolet  PicoTheme = "violet"
	PicoThemeYellow  PicoTheme = "yellow"
	PicoThemeZinc    PicoTheme = "zinc"
)

// AllPicoThemes contains all 19 available themes.
var AllPicoThemes = []PicoTheme{
	PicoThemeAmber, PicoThemeBlue, PicoThemeCyan, PicoThemeFuchsia, PicoThemeGreen,
	PicoThemeGrey, PicoThemeIndigo, PicoThemeJade, PicoThemeLime, PicoThemeOrange,
	PicoThemePink, PicoThemePumpkin, PicoThemePurple, PicoThemeRed, PicoThemeSand,
	PicoThemeSlate, PicoThemeViolet, PicoThemeYellow, PicoThemeZinc,
}

// String returns the theme name as a string (e.g., "blue").
func (t PicoTheme) String() string { return string(t) }

// Source loads the stylesheet at url.
type Source func(ctx context.Context, url string) ([]byte, error)

// PicoOption configures the PicoCSS plugin.
type PicoOption interface {
	apply(*plugin)
}

type pluginOptions struct {
	themes       []PicoTheme
	defaultTheme PicoTheme
	classless    bool
	colorClasses bool
	darkMode     *bool // nil = system preference, true = dark, false = light
	source       Source
}

type asset struct {
	css  []byte
	etag string
}

type plugin struct {
	opts pluginOptions

	mu     sync.Mutex
	assets map[string]asset
}

// New creates a PicoCSS plugin with the given options.
//
// Default configuration (no options):
//   - Themes: [PicoThemeAmber]
//   - Default theme: PicoThemeAmber
//   - Dark mode: system preference (prefers-color-scheme)
//   - Classless: disabled
//   - Color classes: disabled
func New(opts ...PicoOption) via.Plugin {
	p := &plugin{
		opts: pluginOptions{
			themes:       []PicoTheme{PicoThemeAmber},
			defaultTheme: PicoThemeAmber,
			source:       fetchCSS,
		},
		assets: make(map[string]asset),
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	p.opts.themes = deduplicate(p.opts.themes)
	if len(p.opts.themes) == 0 {
		p.opts.themes = []PicoTheme{PicoThemeAmber}
	}
	if !slices.Contains(p.opts.themes, p.opts.defaultTheme) {
		p.opts.defaultTheme = p.opts.themes[0]
	}
	return p
}

// --- Options ---

type withThemesOpt struct{ themes []PicoTheme }

func (o *withThemesOpt) apply(p *plugin) { p.opts.themes = o.themes }

// WithThemes sets which themes are available. Defaults to [PicoThemeAmber].
// Duplicates are removed. Use AllPicoThemes to enable all 19 themes.
func WithThemes(themes []PicoTheme) PicoOption { return &withThemesOpt{themes: themes} }

type withDefaultThemeOpt struct{ theme PicoTheme }

func (o *withDefaultThemeOpt) apply(p *plugin) { p.opts.defaultTheme = o.theme }

// WithDefaultTheme sets the initial theme on page load.
// Falls back to the first theme if not in the themes list.
func WithDefaultTheme(theme PicoTheme) PicoOption { return &withDefaultThemeOpt{theme: theme} }

type withClasslessOpt struct{}

func (o *withClasslessOpt) apply(p *plugin) { p.opts.classless = true }

// WithClassless enables classless Pico CSS mode.
func WithClassless() PicoOption { return &withClasslessOpt{} }

type withColorClassesOpt struct{}

func (o *withColorClassesOpt) apply(p *plugin) { p.opts.colorClasses = true }

// WithColorClasses enables pico-color-* utility classes.
func WithColorClasses() PicoOption { return &withColorClassesOpt{} }

type withDarkModeOpt struct{ dark bool }

func (o *withDarkModeOpt) apply(p *plugin) { p.opts.darkMode = &o.dark }

// WithDarkMode forces dark mode on ($_picoDarkMode = true).
func WithDarkMode() PicoOption { return &withDarkModeOpt{dark: true} }

// WithLightMode forces light mode on ($_picoDarkMode = false).
func WithLightMode() PicoOption { return &withDarkModeOpt{dark: false} }

type withSourceOpt struct{ source Source }

func (o *withSourceOpt) apply(p *plugin) {
	if o.source != nil {
		p.opts.source = o.source
	}
}

// WithSource replaces the CDN download, e.g. with embedded stylesheets.
func WithSource(source Source) PicoOption { return &withSourceOpt{source: source} }

// --- Helpers ---

func deduplicate(themes []PicoTheme) []PicoTheme {
	seen := make(map[PicoTheme]bool)
	result := make([]PicoTheme, 0, len(themes))
	for _, t := range themes {
		if !seen[t] {
			seen[t] = true
			result = append(result, t)
		}
	}
	return result
}

func fetchCSS(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pico: build request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "pico: fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pico: fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCSSBodySize))
}

func crc32Hex(b []byte) string {
	return fmt.Sprintf(`"%08x"`, crc32.ChecksumIEEE(b))
}

// darkModeExpr returns the JS expression for $_picoDarkMode initialization.
func darkModeExpr(override *bool) string {
	if override == nil {
		return "window.matchMedia('(prefers-color-scheme: dark)').matches"
	}
	if *override {
		return "true"
	}
	return "false"
}

// load returns the cached stylesheet for url, fetching it on first use.
// Failed fetches are not cached.
func (p *plugin) load(ctx context.Context, url string) (asset, error) {
	p.mu.Lock()
	a, ok := p.assets[url]
	p.mu.Unlock()
	if ok {
		return a, nil
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	css, err := p.opts.source(ctx, url)
	if err != nil {
		return asset{}, err
	}
	a = asset{css: css, etag: crc32Hex(css)}
	p.mu.Lock()
	p.assets[url] = a
	p.mu.Unlock()
	return a, nil
}

// --- HTTP handler ---

func (p *plugin) assetURL(path string) (string, bool) {
	if path == colorClassesPath {
		return cdnColorClassesURL, p.opts.colorClasses
	}
	name, ok := strings.CutPrefix(path, themePath)
	if !ok {
		return "", false
	}
	name = strings.TrimPrefix(name, "classless/")
	theme := PicoTheme(name)
	if !slices.Contains(p.opts.themes, theme) {
		return "", false
	}
	if p.opts.classless {
		return fmt.Sprintf(cdnClasslessThemeURL, theme), true
	}
	return fmt.Sprintf(cdnThemeURL, theme), true
}

func (p *plugin) servePluginAssets(v *via.V) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ok := p.assetURL(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		a, err := p.load(r.Context(), url)
		if err != nil {
			v.Logger().Error().Err(err).Str("url", url).Msg("pico: stylesheet unavailable")
			http.Error(w, "stylesheet unavailable", http.StatusBadGateway)
			return
		}

		if r.Header.Get("If-None-Match") == a.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/css")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("ETag", a.etag)
		_, _ = w.Write(a.css)
	}
}

// --- Register ---

func (p *plugin) Register(v *via.V) {
	// data-signals is evaluated as JS by Datastar, so JS expressions are
	// valid as values (not strict JSON).
	v.AppendToHead(h.Meta(h.Data("signals",
		fmt.Sprintf(`{_picoTheme: '%s', _picoDarkMode: %s}`,
			p.opts.defaultTheme,
			darkModeExpr(p.opts.darkMode),
		),
	)))

	// Keep data-theme on <html> in step with the dark mode signal.
	v.AppendToHead(h.Meta(h.Data("effect",
		"document.documentElement.dataset.theme = $_picoDarkMode ? 'dark' : 'light'",
	)))

	themeURL := themePath + string(p.opts.defaultTheme)
	hrefExpr := fmt.Sprintf("'%s'+$_picoTheme", themePath)
	if p.opts.classless {
		themeURL = themePath + "classless/" + string(p.opts.defaultTheme)
		hrefExpr = fmt.Sprintf("'%sclassless/'+$_picoTheme", themePath)
	}
	v.AppendToHead(h.Link(
		h.Rel("stylesheet"),
		h.Href(themeURL),
		h.Data("attr:href", hrefExpr),
	))

	if p.opts.colorClasses {
		v.AppendToHead(h.Link(
			h.Rel("stylesheet"),
			h.Href(colorClassesPath),
		))
	}

	v.HTTPServeMux().Handle("GET "+themePath, p.servePluginAssets(v))
	if p.opts.colorClasses {
		v.HTTPServeMux().Handle("GET "+colorClassesPath, p.servePluginAssets(v))
	}
}
