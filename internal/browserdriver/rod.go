package browserdriver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/proberun/probe/internal/domain"
)

// RodDriver drives Chrome/Chromium via the DevTools protocol through
// go-rod. It never opens a visible UI: Launch always passes the
// equivalent of --no-sandbox --disable-setuid-sandbox and runs
// headless unless explicitly overridden for verification runs.
type RodDriver struct {
	bin      string
	headless bool
	logger   *zap.Logger

	browser *rod.Browser
}

// NewRodDriver returns a driver that will launch bin (empty string
// lets go-rod locate/download a suitable Chromium) in the requested
// headless mode.
func NewRodDriver(bin string, headless bool, logger *zap.Logger) *RodDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodDriver{bin: bin, headless: headless, logger: logger}
}

func (d *RodDriver) Launch(ctx context.Context, recordDir string) error {
	l := launcher.New().Headless(d.headless).
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")
	if d.bin != "" {
		l = l.Bin(d.bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("browserdriver: launch: %w: %w", domain.ErrNavigationFailed, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("browserdriver: connect: %w", err)
	}

	d.browser = browser
	d.logger.Debug("browser launched", zap.Bool("headless", d.headless))
	return nil
}

func (d *RodDriver) NewContext(ctx context.Context, vw, vh int, recordVideo bool) (Context, error) {
	if d.browser == nil {
		return nil, fmt.Errorf("browserdriver: launch not called")
	}
	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browserdriver: incognito context: %w", err)
	}
	return &rodContext{browser: incognito, vw: vw, vh: vh, logger: d.logger}, nil
}

func (d *RodDriver) Close() error {
	if d.browser == nil {
		return nil
	}
	return d.browser.Close()
}

type rodContext struct {
	browser *rod.Browser
	vw, vh  int
	logger  *zap.Logger
}

func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("browserdriver: new page: %w", err)
	}

	width, height := c.vw, c.vh
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		c.logger.Warn("set viewport failed", zap.Error(err))
	}

	return &rodPage{page: page}, nil
}

func (c *rodContext) Close() error {
	return nil
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("browserdriver: goto %s: %w: %w", url, domain.ErrNavigationFailed, err)
	}
	if err := pg.WaitStable(300 * time.Millisecond); err != nil {
		return fmt.Errorf("browserdriver: wait stable %s: %w: %w", url, domain.ErrNavigationFailed, err)
	}
	return nil
}

func (p *rodPage) QueryAll(ctx context.Context, css string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(css)
	if err != nil {
		return nil, fmt.Errorf("browserdriver: query all %q: %w", css, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Query(ctx context.Context, css string) (Element, bool, error) {
	el, err := p.page.Context(ctx).Timeout(DefaultSelectorTimeout).Element(css)
	if err != nil {
		return nil, false, nil
	}
	return &rodElement{el: el}, true, nil
}

func (p *rodPage) Resolve(ctx context.Context, selectorList string, perSelectorTimeout time.Duration) (Element, error) {
	selectors := SplitSelectorList(selectorList)
	for _, sel := range selectors {
		el, err := p.page.Context(ctx).Timeout(perSelectorTimeout).Element(sel)
		if err == nil {
			return &rodElement{el: el}, nil
		}
	}
	return nil, domain.NewSelectorError(selectorList, selectors)
}

func (p *rodPage) Fill(ctx context.Context, selectorList, value string) error {
	el, err := p.Resolve(ctx, selectorList, DefaultSelectorTimeout)
	if err != nil {
		return err
	}
	re := el.(*rodElement)
	if err := re.el.Context(ctx).SelectAllText(); err == nil {
		_ = re.el.Input("")
	}
	if err := re.el.Context(ctx).Input(value); err != nil {
		return fmt.Errorf("browserdriver: fill %q: %w", selectorList, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selectorList string) error {
	el, err := p.Resolve(ctx, selectorList, DefaultSelectorTimeout)
	if err != nil {
		return err
	}
	re := el.(*rodElement)
	if err := re.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browserdriver: click %q: %w", selectorList, err)
	}
	return nil
}

func (p *rodPage) WaitLoadState(ctx context.Context, state string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	if strings.EqualFold(state, "networkidle") {
		if err := pg.WaitStable(300 * time.Millisecond); err != nil {
			return fmt.Errorf("browserdriver: wait %s: %w: %w", state, domain.ErrTimeout, err)
		}
		return nil
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("browserdriver: wait %s: %w: %w", state, domain.ErrTimeout, err)
	}
	return nil
}

func (p *rodPage) Evaluate(ctx context.Context, jsExpr string) (string, error) {
	res, err := p.page.Context(ctx).Eval(jsExpr)
	if err != nil {
		return "", fmt.Errorf("browserdriver: evaluate: %w", err)
	}
	return res.Value.String(), nil
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	data, err := p.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("browserdriver: screenshot: %w", err)
	}
	return writeFile(path, data)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	val, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browserdriver: attribute %q: %w", name, err)
	}
	if val == nil {
		return "", false, nil
	}
	return *val, true, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Eval(ctx context.Context, jsExpr string) (string, error) {
	res, err := e.el.Context(ctx).Eval(jsExpr)
	if err != nil {
		return "", fmt.Errorf("browserdriver: element eval: %w", err)
	}
	return res.Value.String(), nil
}
