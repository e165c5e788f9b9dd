// Package vtest drives Via apps over HTTP the way a browser would: it loads a
// page, keeps the SSE stream open, runs Datastar triggers and merges the
// streamed patches back into its copy of the document.
package vtest

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gost-dom/browser/dom"
	"github.com/gost-dom/browser/html"
	"github.com/pkg/errors"
)

const contextSignal = "via-c"

var (
	defaultHandler   http.Handler
	defaultHandlerMu sync.RWMutex
)

// SetHandler sets the default handler for Visit.
func SetHandler(handler http.Handler) {
	defaultHandlerMu.Lock()
	defaultHandler = handler
	defaultHandlerMu.Unlock()
}

// Visit creates a new stateful Page by visiting the given path.
func Visit(path string) *Page {
	defaultHandlerMu.RLock()
	handler := defaultHandler
	defaultHandlerMu.RUnlock()

	if handler == nil {
		panic("vtest: no handler set, call vtest.SetHandler first")
	}
	return VisitWith(handler, path)
}

// VisitWith loads path from handler and opens the page's SSE stream.
func VisitWith(handler http.Handler, path string) *Page {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	doc := w.Body.String()
	signals := extractSignals(doc)
	id, _ := signals[contextSignal].(string)
	delete(signals, contextSignal)

	p := &Page{
		handler: handler,
		id:      id,
		status:  w.Code,
		html:    doc,
		signals: signals,
		values:  make(map[string]string),
	}
	if id != "" {
		p.sse = openSSE(handler, id)
	}
	return p
}

// Page represents a stateful page that maintains the tab id, the current
// document and the browser-side signal values.
type Page struct {
	mu      sync.Mutex
	handler http.Handler
	id      string
	status  int
	html    string
	sse     *SSE
	signals map[string]any
	values  map[string]string
}

// ID returns the tab id the server assigned to the page.
func (p *Page) ID() string {
	return p.id
}

// Status returns the HTTP status of the page load.
func (p *Page) Status() int {
	return p.status
}

// HTML returns the current document with all received patches applied.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()
	return p.html
}

// Signal returns the browser-side value of a signal.
func (p *Page) Signal(id string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()
	return p.signals[id]
}

// Click activates the button whose text is text. A submit button inside a
// form submits that form.
func (p *Page) Click(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()

	doc, err := p.documentLocked()
	if err != nil {
		return err
	}
	if expr, ok := findButton(doc, text, nil); ok {
		return p.runLocked(expr, nil)
	}
	forms, err := doc.QuerySelectorAll("form")
	if err != nil {
		return errors.Wrap(err, "query forms")
	}
	for _, n := range forms.All() {
		form, ok := n.(dom.Element)
		if !ok {
			continue
		}
		if _, ok := findButton(form, text, isSubmit); ok {
			return p.runLocked(onAttr(form, "submit"), form)
		}
	}
	return errors.Errorf("vtest: no button with text %q", text)
}

// Submit submits the form with the given data-testid.
func (p *Page) Submit(testID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()

	doc, err := p.documentLocked()
	if err != nil {
		return err
	}
	form, err := doc.QuerySelector(fmt.Sprintf(`form[data-testid=%q]`, testID))
	if err != nil || form == nil {
		return errors.Errorf("vtest: no form with test id %q", testID)
	}
	return p.runLocked(onAttr(form, "submit"), form)
}

// Fill types value into the input found by name, id or placeholder, and
// updates the signal bound to it.
func (p *Page) Fill(field, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()

	doc, err := p.documentLocked()
	if err != nil {
		return err
	}
	el := findField(doc, field)
	if el == nil {
		return errors.Errorf("vtest: no field %q", field)
	}
	p.values[fieldKey(el)] = value
	if sig, ok := el.GetAttribute("data-bind"); ok {
		p.signals[sig] = value
	}
	return nil
}

// FieldValue returns what the input found by name, id or placeholder shows.
func (p *Page) FieldValue(field string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()

	doc, err := p.documentLocked()
	if err != nil {
		return "", err
	}
	el := findField(doc, field)
	if el == nil {
		return "", errors.Errorf("vtest: no field %q", field)
	}
	if v, ok := p.values[fieldKey(el)]; ok {
		return v, nil
	}
	v, _ := el.GetAttribute("value")
	return v, nil
}

// Text returns the visible text of the body, whitespace collapsed.
func (p *Page) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()
	doc, err := p.documentLocked()
	if err != nil {
		return ""
	}
	return collapse(doc.Body().TextContent())
}

// TextsOf returns the text of every element matching selector, in document order.
func (p *Page) TextsOf(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()
	doc, err := p.documentLocked()
	if err != nil {
		return nil
	}
	nodes, err := doc.QuerySelectorAll(selector)
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range nodes.All() {
		out = append(out, collapse(n.TextContent()))
	}
	return out
}

// TextOf returns the text of the first element matching selector.
func (p *Page) TextOf(selector string) (string, error) {
	texts := p.TextsOf(selector)
	if len(texts) == 0 {
		return "", errors.Errorf("vtest: nothing matches %q", selector)
	}
	return texts[0], nil
}

// Count returns the number of elements matching selector.
func (p *Page) Count(selector string) int {
	return len(p.TextsOf(selector))
}

// ByTestID returns the text of the element with the given data-testid.
func (p *Page) ByTestID(testID string) (string, error) {
	return p.TextOf(fmt.Sprintf(`[data-testid=%q]`, testID))
}

// Window parses the current document into a gost-dom window.
func (p *Page) Window() (html.Window, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventsLocked()
	return Parse(resolveTextSignals(p.html, p.signals))
}

// AssertText asserts the page contains the given text.
func (p *Page) AssertText(t testing.TB, text string) {
	t.Helper()
	if visible := p.Text(); !strings.Contains(visible, text) {
		t.Fatalf("expected page to contain %q, text:\n%s", text, visible)
	}
}

// WaitFor polls until cond holds for the page or timeout elapses.
func (p *Page) WaitFor(timeout time.Duration, cond func(*Page) bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond(p) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// WaitForText waits until the text of selector equals want.
func (p *Page) WaitForText(t testing.TB, selector, want string, timeout time.Duration) {
	t.Helper()
	ok := p.WaitFor(timeout, func(p *Page) bool {
		got, err := p.TextOf(selector)
		return err == nil && got == want
	})
	if !ok {
		got, _ := p.TextOf(selector)
		t.Fatalf("expected %s to read %q within %s, got %q", selector, want, timeout, got)
	}
}

// Close closes the page's SSE stream and tells the server the tab is gone.
func (p *Page) Close() {
	if p.sse != nil {
		p.sse.Close()
	}
	if p.id != "" {
		req := httptest.NewRequest(http.MethodPost, "/_session/close", strings.NewReader(p.id))
		p.handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func (p *Page) documentLocked() (dom.Document, error) {
	win, err := Parse(resolveTextSignals(p.html, p.signals))
	if err != nil {
		return nil, err
	}
	return win.Document(), nil
}

// runLocked evaluates the subset of Datastar expressions Via emits:
// signal assignments, @get actions and el.reset().
func (p *Page) runLocked(expr string, form dom.Element) error {
	if expr == "" {
		return errors.New("vtest: element has no trigger")
	}
	for _, m := range assignPattern.FindAllStringSubmatch(expr, -1) {
		var v any
		if err := json.Unmarshal([]byte(m[2]), &v); err != nil {
			v = strings.Trim(m[2], `'"`)
		}
		p.signals[m[1]] = v
	}
	for _, m := range getPattern.FindAllStringSubmatch(expr, -1) {
		if err := p.getLocked(m[1]); err != nil {
			return err
		}
	}
	if form != nil && strings.Contains(expr, "el.reset()") {
		inputs, err := form.QuerySelectorAll("input")
		if err == nil {
			for _, n := range inputs.All() {
				if el, ok := n.(dom.Element); ok {
					p.values[fieldKey(el)] = ""
				}
			}
		}
	}
	p.settleLocked()
	return nil
}

func (p *Page) getLocked(path string) error {
	sigs := map[string]any{contextSignal: p.id}
	maps.Copy(sigs, p.signals)
	b, err := json.Marshal(sigs)
	if err != nil {
		return errors.Wrap(err, "encode signals")
	}
	req := httptest.NewRequest(http.MethodGet, path+"?datastar="+url.QueryEscape(string(b)), nil)
	w := httptest.NewRecorder()
	p.handler.ServeHTTP(w, req)
	if w.Code >= 400 {
		return errors.Errorf("vtest: %s answered %d", path, w.Code)
	}
	return nil
}

// settleLocked waits until the SSE stream has been quiet for a moment and
// applies what arrived.
func (p *Page) settleLocked() {
	if p.sse == nil {
		return
	}
	p.sse.settle(30*time.Millisecond, time.Second)
	p.applyEventsLocked()
}

func (p *Page) applyEventsLocked() {
	if p.sse == nil {
		return
	}
	for _, ev := range p.sse.next() {
		switch ev.Name {
		case "datastar-patch-elements":
			if ev.Field("mode") != "" && ev.Field("mode") != "outer" {
				continue
			}
			p.html = mergeElements(p.html, ev.Field("elements"))
		case "datastar-patch-signals":
			var sigs map[string]any
			if err := json.Unmarshal([]byte(ev.Field("signals")), &sigs); err != nil {
				continue
			}
			for k, v := range sigs {
				if v == nil {
					delete(p.signals, k)
					continue
				}
				p.signals[k] = v
			}
		}
	}
}

var (
	assignPattern   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)=([^;]+);`)
	getPattern      = regexp.MustCompile(`@get\('([^']+)'\)`)
	signalsPattern  = regexp.MustCompile(`data-signals="([^"]*)"`)
	scriptPattern   = regexp.MustCompile(`(?s)<script\b.*?</script>`)
	dataTextPattern = regexp.MustCompile(`(<[^>]*\sdata-text="\$([A-Za-z_][A-Za-z0-9_]*)"[^>]*>)(</[a-z0-9]+>)`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// Parse loads an HTML document into a gost-dom window. Scripts are dropped;
// the window has no script engine.
func Parse(doc string) (html.Window, error) {
	win, err := html.NewWindowReader(strings.NewReader(scriptPattern.ReplaceAllString(doc, "")))
	if err != nil {
		return nil, errors.Wrap(err, "parse document")
	}
	return win, nil
}

func extractSignals(doc string) map[string]any {
	sigs := make(map[string]any)
	// plugins may seed signals with JS expressions; only JSON blocks are read
	for _, m := range signalsPattern.FindAllStringSubmatch(doc, -1) {
		var block map[string]any
		if json.Unmarshal([]byte(unescapeAttr(m[1])), &block) == nil {
			maps.Copy(sigs, block)
		}
	}
	return sigs
}

func unescapeAttr(s string) string {
	return strings.NewReplacer("&#34;", `"`, "&quot;", `"`, "&#39;", "'", "&lt;", "<", "&gt;", ">", "&amp;", "&").Replace(s)
}

// resolveTextSignals fills empty data-text elements with their signal value.
func resolveTextSignals(doc string, sigs map[string]any) string {
	return dataTextPattern.ReplaceAllStringFunc(doc, func(match string) string {
		m := dataTextPattern.FindStringSubmatch(match)
		v, ok := sigs[m[2]]
		if !ok {
			return match
		}
		return m[1] + fmt.Sprint(v) + m[3]
	})
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func isSubmit(el dom.Element) bool {
	t, ok := el.GetAttribute("type")
	return !ok || t == "submit"
}

type elementQuerier interface {
	QuerySelectorAll(string) (dom.NodeList, error)
}

func findButton(root elementQuerier, text string, filter func(dom.Element) bool) (string, bool) {
	buttons, err := root.QuerySelectorAll("button")
	if err != nil {
		return "", false
	}
	for _, n := range buttons.All() {
		el, ok := n.(dom.Element)
		if !ok || collapse(el.TextContent()) != text {
			continue
		}
		if filter != nil {
			if filter(el) {
				return "", true
			}
			continue
		}
		if expr := onAttr(el, "click"); expr != "" {
			return expr, true
		}
	}
	return "", false
}

func onAttr(el dom.Element, event string) string {
	for _, name := range []string{"data-on:" + event, "data-on:" + event + "__prevent"} {
		if v, ok := el.GetAttribute(name); ok {
			return v
		}
	}
	return ""
}

func findField(doc dom.Document, field string) dom.Element {
	for _, sel := range []string{
		fmt.Sprintf(`[name=%q]`, field),
		fmt.Sprintf(`[id=%q]`, field),
		fmt.Sprintf(`[placeholder=%q]`, field),
	} {
		if el, err := doc.QuerySelector(sel); err == nil && el != nil {
			return el
		}
	}
	return nil
}

func fieldKey(el dom.Element) string {
	if id, ok := el.GetAttribute("id"); ok && id != "" {
		return "#" + id
	}
	name, _ := el.GetAttribute("name")
	return name
}

// Tester provides request-level helpers for Via apps.
type Tester struct {
	handler http.Handler
}

// New creates a new Tester for the given handler.
func New(handler http.Handler) *Tester {
	return &Tester{handler: handler}
}

// Response wraps an HTTP response with Via-specific helpers.
type Response struct {
	*httptest.ResponseRecorder
	body      string
	sessionID string
	tester    *Tester
}

// Get performs a GET request to the given path.
func (t *Tester) Get(path string) *Response {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	t.handler.ServeHTTP(w, req)

	body := w.Body.String()
	id, _ := extractSignals(body)[contextSignal].(string)
	return &Response{
		ResponseRecorder: w,
		body:             body,
		sessionID:        id,
		tester:           t,
	}
}

// SessionID returns the tab id carried by the page.
func (r *Response) SessionID() string {
	return r.sessionID
}

// AssertStatus asserts the response status code.
func (r *Response) AssertStatus(t testing.TB, expected int) {
	t.Helper()
	if r.Code != expected {
		t.Fatalf("expected status %d, got %d", expected, r.Code)
	}
}

// AssertContains asserts the response body contains the given text.
func (r *Response) AssertContains(t testing.TB, text string) {
	t.Helper()
	if !strings.Contains(r.body, text) {
		t.Fatalf("expected body to contain %q, body:\n%s", text, r.body)
	}
}

// TriggerAction triggers the index-th click action of the page (0-based).
func (r *Response) TriggerAction(t testing.TB, index int) *Response {
	t.Helper()

	actionURLs := getPattern.FindAllStringSubmatch(unescapeAttr(r.body), -1)
	if index >= len(actionURLs) {
		t.Fatalf("action index %d out of range (found %d actions)", index, len(actionURLs))
	}
	q, _ := json.Marshal(map[string]any{contextSignal: r.sessionID})
	req := httptest.NewRequest(http.MethodGet, actionURLs[index][1]+"?datastar="+url.QueryEscape(string(q)), nil)
	w := httptest.NewRecorder()
	r.tester.handler.ServeHTTP(w, req)

	return &Response{
		ResponseRecorder: w,
		body:             w.Body.String(),
		sessionID:        r.sessionID,
		tester:           r.tester,
	}
}

// SSE opens the SSE stream of the given tab.
func (t *Tester) SSE(sessionID string) *SSE {
	return openSSE(t.handler, sessionID)
}
