package page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Event is one simulated DOM event recorded by a Document.
type Event struct {
	Type   string // click, input, change, scroll
	Target string
	Value  string
}

type clickHandler struct {
	selector string
	fn       func(d *Document)
}

// Document is a Page over a parsed HTML snapshot. Clicks and scrolls run
// registered handlers so callers can script how the page reacts.
type Document struct {
	mu       sync.Mutex
	url      *url.URL
	doc      *goquery.Document
	onClick  []clickHandler
	onScroll []func(d *Document)
	events   []Event
}

// NewDocument parses markup as the page rendered at rawURL.
func NewDocument(rawURL, markup string) (*Document, error) {
	d := &Document{}
	if err := d.Navigate(rawURL, markup); err != nil {
		return nil, err
	}
	return d, nil
}

// Navigate replaces the current render. Handles from the previous render
// become stale; registered handlers are kept.
func (d *Document) Navigate(rawURL, markup string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	d.mu.Lock()
	d.url = u
	d.doc = doc
	d.mu.Unlock()
	return nil
}

// OnClick registers fn to run whenever an element matching selector is clicked.
func (d *Document) OnClick(selector string, fn func(d *Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick = append(d.onClick, clickHandler{selector: selector, fn: fn})
}

// OnScroll registers fn to run on every ScrollToBottom.
func (d *Document) OnScroll(fn func(d *Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onScroll = append(d.onScroll, fn)
}

// Events returns a copy of the event journal.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// ─── Mutation helpers ────────────────────────────────────────────────────────

// Append parses markup and appends it to the first element matching parent.
func (d *Document) Append(parent, markup string) error {
	sel := d.root().Find(parent).First()
	if sel.Length() == 0 {
		return fmt.Errorf("append: no element matches %q", parent)
	}
	sel.AppendHtml(markup)
	return nil
}

// Remove detaches every element matching selector.
func (d *Document) Remove(selector string) {
	d.root().Find(selector).Remove()
}

// SetAttr sets an attribute on every element matching selector.
func (d *Document) SetAttr(selector, name, value string) {
	d.root().Find(selector).SetAttr(name, value)
}

// Has reports whether any element matches selector.
func (d *Document) Has(selector string) bool {
	return d.root().Find(selector).Length() > 0
}

// ─── Page implementation ─────────────────────────────────────────────────────

func (d *Document) URL() *url.URL {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := *d.url
	return &u
}

func (d *Document) QueryAll(selector string) []Element {
	return wrap(d.root().Find(selector))
}

func (d *Document) Click(ctx context.Context, el Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := d.attached(el)
	if err != nil {
		return err
	}

	if n.Data == "input" {
		switch strings.ToLower(attr(n, "type")) {
		case "radio":
			d.check(n, true)
		case "checkbox":
			d.check(n, !hasAttr(n, "checked"))
		}
	}

	d.mu.Lock()
	d.events = append(d.events, Event{Type: "click", Target: describe(n)})
	var fire []func(*Document)
	for _, h := range d.onClick {
		if el.Matches(h.selector) {
			fire = append(fire, h.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fire {
		fn(d)
	}
	return nil
}

func (d *Document) SetValue(ctx context.Context, el Element, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := d.attached(el)
	if err != nil {
		return err
	}
	sel := goquery.NewDocumentFromNode(n).Selection
	if n.Data == "textarea" {
		sel.SetText(value)
	} else {
		sel.SetAttr("value", value)
	}
	d.record(Event{Type: "input", Target: describe(n), Value: value})
	d.record(Event{Type: "change", Target: describe(n), Value: value})
	return nil
}

func (d *Document) SetChecked(ctx context.Context, el Element, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := d.attached(el)
	if err != nil {
		return err
	}
	d.check(n, checked)
	d.record(Event{Type: "change", Target: describe(n), Value: fmt.Sprint(checked)})
	return nil
}

func (d *Document) SelectOption(ctx context.Context, el Element, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := d.attached(el)
	if err != nil {
		return err
	}
	if n.Data != "select" {
		return fmt.Errorf("select option: %s is not a select", describe(n))
	}
	options := goquery.NewDocumentFromNode(n).Find("option")
	var match *html.Node
	options.EachWithBreak(func(_ int, o *goquery.Selection) bool {
		v, ok := o.Attr("value")
		if !ok {
			v = normalizeSpace(o.Text())
		}
		if v == value || normalizeSpace(o.Text()) == value {
			match = o.Nodes[0]
			return false
		}
		return true
	})
	if match == nil {
		return fmt.Errorf("select option: no option %q", value)
	}
	options.RemoveAttr("selected")
	goquery.NewDocumentFromNode(match).SetAttr("selected", "selected")
	d.record(Event{Type: "change", Target: describe(n), Value: value})
	return nil
}

func (d *Document) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.events = append(d.events, Event{Type: "scroll", Target: "window"})
	fire := append([]func(*Document){}, d.onScroll...)
	d.mu.Unlock()
	for _, fn := range fire {
		fn(d)
	}
	return nil
}

// ScrollHeight approximates the document height by its element count.
func (d *Document) ScrollHeight() int {
	return d.root().Find("body *").Length()
}

// ─── internals ───────────────────────────────────────────────────────────────

func (d *Document) root() *goquery.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc
}

func (d *Document) record(e Event) {
	d.mu.Lock()
	d.events = append(d.events, e)
	d.mu.Unlock()
}

// attached resolves el to its node and verifies it belongs to this render.
func (d *Document) attached(el Element) (*html.Node, error) {
	ne, ok := el.(*node)
	if !ok || ne == nil {
		return nil, fmt.Errorf("page: foreign element %T", el)
	}
	top := ne.n
	for top.Parent != nil {
		top = top.Parent
	}
	root := d.root()
	if len(root.Nodes) == 0 || top != root.Nodes[0] {
		return nil, ErrStaleElement
	}
	return ne.n, nil
}

func (d *Document) check(n *html.Node, checked bool) {
	sel := goquery.NewDocumentFromNode(n).Selection
	if !checked {
		sel.RemoveAttr("checked")
		return
	}
	if strings.EqualFold(attr(n, "type"), "radio") {
		if name := attr(n, "name"); name != "" {
			d.root().Find(fmt.Sprintf(`input[type="radio"][name=%q]`, name)).RemoveAttr("checked")
		}
	}
	sel.SetAttr("checked", "checked")
}

// node is the Element implementation backing Document.
type node struct {
	n *html.Node
}

func wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, &node{n: n})
	}
	return out
}

func (e *node) sel() *goquery.Selection { return goquery.NewDocumentFromNode(e.n).Selection }

func (e *node) QueryAll(selector string) []Element { return wrap(e.sel().Find(selector)) }

func (e *node) Text() string { return normalizeSpace(e.sel().Text()) }

func (e *node) Attr(name string) (string, bool) { return e.sel().Attr(name) }

func (e *node) Matches(selector string) bool { return e.sel().Is(selector) }

func (e *node) Checked() bool { return hasAttr(e.n, "checked") }

func (e *node) Disabled() bool {
	return hasAttr(e.n, "disabled") || attr(e.n, "aria-disabled") == "true"
}

func (e *node) Value() string {
	switch e.n.Data {
	case "textarea":
		return e.sel().Text()
	case "select":
		opt := e.sel().Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = e.sel().Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v
		}
		return normalizeSpace(opt.Text())
	}
	return attr(e.n, "value")
}

// Visible is false when the node or an ancestor is hidden by attribute or
// inline style.
func (e *node) Visible() bool {
	if e.n.Data == "input" && strings.EqualFold(attr(e.n, "type"), "hidden") {
		return false
	}
	for n := e.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	if id := attr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	if name := attr(n, "name"); name != "" {
		b.WriteString("[name=" + name + "]")
	}
	return b.String()
}

func normalizeSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
