package browserdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/proberun/probe/internal/domain"
)

// FakePage is an in-memory Page used by tests for the Explorer and
// Executor so they can run without a real Chromium.
type FakePage struct {
	URLValue     string
	TitleValue   string
	ContentValue string
	Elements     map[string][]*FakeElement

	Filled    map[string]string
	Clicked   []string
	Navigated []string
	Closed    bool
}

// NewFakePage returns an empty FakePage ready to be configured by a test.
func NewFakePage() *FakePage {
	return &FakePage{Elements: make(map[string][]*FakeElement), Filled: make(map[string]string)}
}

type FakeElement struct {
	Attrs   map[string]string
	TextVal string
}

func (e *FakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *FakeElement) Text(ctx context.Context) (string, error) { return e.TextVal, nil }

func (e *FakeElement) Eval(ctx context.Context, jsExpr string) (string, error) { return "", nil }

func (p *FakePage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	p.Navigated = append(p.Navigated, url)
	p.URLValue = url
	return nil
}

func (p *FakePage) QueryAll(ctx context.Context, css string) ([]Element, error) {
	els := p.Elements[css]
	out := make([]Element, 0, len(els))
	for _, e := range els {
		out = append(out, e)
	}
	return out, nil
}

func (p *FakePage) Query(ctx context.Context, css string) (Element, bool, error) {
	els := p.Elements[css]
	if len(els) == 0 {
		return nil, false, nil
	}
	return els[0], true, nil
}

func (p *FakePage) Resolve(ctx context.Context, selectorList string, perSelectorTimeout time.Duration) (Element, error) {
	for _, sel := range SplitSelectorList(selectorList) {
		if els, ok := p.Elements[sel]; ok && len(els) > 0 {
			return els[0], nil
		}
	}
	return nil, domain.NewSelectorError(selectorList, SplitSelectorList(selectorList))
}

func (p *FakePage) Fill(ctx context.Context, selectorList, value string) error {
	if _, err := p.Resolve(ctx, selectorList, perSelectorTimeoutOrDefault(0)); err != nil {
		return err
	}
	p.Filled[selectorList] = value
	return nil
}

func (p *FakePage) Click(ctx context.Context, selectorList string) error {
	if _, err := p.Resolve(ctx, selectorList, perSelectorTimeoutOrDefault(0)); err != nil {
		return err
	}
	p.Clicked = append(p.Clicked, selectorList)
	return nil
}

func (p *FakePage) WaitLoadState(ctx context.Context, state string, timeout time.Duration) error {
	return nil
}

func (p *FakePage) Evaluate(ctx context.Context, jsExpr string) (string, error) { return "", nil }

func (p *FakePage) Content(ctx context.Context) (string, error) { return p.ContentValue, nil }

func (p *FakePage) Title(ctx context.Context) (string, error) { return p.TitleValue, nil }

func (p *FakePage) URL() string { return p.URLValue }

func (p *FakePage) Screenshot(ctx context.Context, path string) error {
	return writeFile(path, []byte("fake-png"))
}

func (p *FakePage) Close() error { p.Closed = true; return nil }

func perSelectorTimeoutOrDefault(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultSelectorTimeout
	}
	return d
}

// FakeContext and FakeDriver round out a fully in-memory Driver.
type FakeContext struct {
	Pages []*FakePage
}

func (c *FakeContext) NewPage(ctx context.Context) (Page, error) {
	p := NewFakePage()
	c.Pages = append(c.Pages, p)
	return p, nil
}

func (c *FakeContext) Close() error { return nil }

type FakeDriver struct {
	Launched bool
}

func (d *FakeDriver) Launch(ctx context.Context, recordDir string) error {
	d.Launched = true
	return nil
}

func (d *FakeDriver) NewContext(ctx context.Context, vw, vh int, recordVideo bool) (Context, error) {
	if !d.Launched {
		return nil, fmt.Errorf("browserdriver: launch not called")
	}
	return &FakeContext{}, nil
}

func (d *FakeDriver) Close() error { return nil }

var _ Driver = (*FakeDriver)(nil)
var _ Page = (*FakePage)(nil)
