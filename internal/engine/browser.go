package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/devices"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"scorch/internal/model"
	"scorch/internal/scrape"
)

// actionStepTimeout bounds each individual page interaction.
const actionStepTimeout = 10 * time.Second

// Browser renders pages in headless Chrome over CDP. The stealth
// variant injects fingerprint-masking JS before navigation.
type Browser struct {
	controlURL string
	timeout    time.Duration
	stealth    bool
}

func NewBrowser(controlURL string, timeout time.Duration) *Browser {
	return &Browser{controlURL: controlURL, timeout: timeout}
}

func NewStealthBrowser(controlURL string, timeout time.Duration) *Browser {
	return &Browser{controlURL: controlURL, timeout: timeout, stealth: true}
}

func (b *Browser) Name() string {
	if b.stealth {
		return "browser-stealth"
	}
	return "browser"
}

func (b *Browser) Scrape(ctx context.Context, req *scrape.EngineRequest) (*scrape.EngineResult, error) {
	timeout := b.timeout
	if req.Timeout > 0 && req.Timeout < timeout {
		timeout = req.Timeout
	}

	browser := rod.New().Context(ctx).Timeout(timeout)
	if b.controlURL != "" {
		browser = browser.ControlURL(b.controlURL)
	}
	if err := browser.Connect(); err != nil {
		return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
	}
	defer page.MustClose()

	// Stealth JS and device emulation only affect navigations that
	// happen after they are installed.
	if b.stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
		}
	}
	if req.Mobile {
		if err := page.Emulate(devices.IPhoneX); err != nil {
			return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
		}
	}
	if len(req.Headers) > 0 {
		pairs := make([]string, 0, len(req.Headers)*2)
		for k, v := range req.Headers {
			pairs = append(pairs, k, v)
		}
		if cleanup, err := page.SetExtraHeaders(pairs); err == nil {
			defer cleanup()
		}
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		return nil, classifyNavigationError(b.Name(), req.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, classifyNavigationError(b.Name(), req.URL, err)
	}
	if req.WaitFor > 0 {
		select {
		case <-time.After(req.WaitFor):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	}

	var actionsResult *model.ActionsResult
	if len(req.Actions) > 0 {
		actionsResult, err = b.runActions(ctx, page, req.Actions)
		if err != nil {
			return nil, err
		}
	}

	html, err := p.HTML()
	if err != nil {
		return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
	}

	res := &scrape.EngineResult{
		URL:        evalString(p, `() => window.location.href`),
		HTML:       html,
		StatusCode: navigationStatus(p),
		Actions:    actionsResult,
	}
	if res.URL == "" {
		res.URL = req.URL
	}
	if res.StatusCode == 0 {
		res.StatusCode = 200
	}
	if req.Screenshot {
		shot, err := p.Screenshot(req.ScreenshotFullPage, nil)
		if err != nil {
			return nil, &scrape.EngineError{Engine: b.Name(), Err: err}
		}
		res.Screenshot = "data:image/png;base64," + base64.StdEncoding.EncodeToString(shot)
	}
	return res, nil
}

// navigationStatus reads the HTTP status of the main navigation without
// CDP event listeners, which conflict with request interception on
// recent Chromium builds.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (b *Browser) runActions(ctx context.Context, page *rod.Page, actions []model.Action) (*model.ActionsResult, error) {
	result := &model.ActionsResult{}
	for i, action := range actions {
		if err := b.runAction(ctx, page, action, result); err != nil {
			return nil, &scrape.ActionError{Index: i, Action: action.Type, Err: err}
		}
	}
	return result, nil
}

func (b *Browser) runAction(ctx context.Context, page *rod.Page, action model.Action, result *model.ActionsResult) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionStepTimeout)
	defer cancel()
	p := page.Context(actionCtx)

	switch action.Type {
	case "wait":
		if action.Selector != "" {
			return p.WaitElementsMoreThan(action.Selector, 0)
		}
		if action.Milliseconds > 0 {
			select {
			case <-time.After(time.Duration(action.Milliseconds) * time.Millisecond):
			case <-actionCtx.Done():
				return actionCtx.Err()
			}
		}
		return nil

	case "click":
		if action.Selector == "" {
			return errors.New("click requires a selector")
		}
		el, err := p.Element(action.Selector)
		if err != nil {
			return fmt.Errorf("element %q not found: %w", action.Selector, err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)

	case "write":
		if action.Selector != "" {
			el, err := p.Element(action.Selector)
			if err != nil {
				return fmt.Errorf("element %q not found: %w", action.Selector, err)
			}
			return el.Input(action.Text)
		}
		return p.Keyboard.Type(textToKeys(action.Text)...)

	case "press":
		key, ok := namedKeys[action.Key]
		if !ok {
			return fmt.Errorf("unknown key %q", action.Key)
		}
		return p.Keyboard.Type(key)

	case "scroll":
		return scrollPage(p, action)

	case "screenshot":
		shot, err := p.Screenshot(action.FullPage, nil)
		if err != nil {
			return err
		}
		result.Screenshots = append(result.Screenshots,
			"data:image/png;base64,"+base64.StdEncoding.EncodeToString(shot))
		return nil

	case "executeJavascript":
		if action.Script == "" {
			return errors.New("executeJavascript requires a script")
		}
		res, err := p.Eval(action.Script)
		if err != nil {
			return err
		}
		result.JavaScript = append(result.JavaScript, res.Value.Val())
		return nil

	case "scrape":
		html, err := p.HTML()
		if err != nil {
			return err
		}
		result.Scrapes = append(result.Scrapes, model.ActionScrape{
			URL:  evalString(p, `() => window.location.href`),
			HTML: html,
		})
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func scrollPage(p *rod.Page, action model.Action) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return err
	}
	delta := float64(res.Value.Int())
	if action.Direction == "up" {
		delta = -delta
	}
	for i := 0; i < amount; i++ {
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Home":       input.Home,
	"End":        input.End,
}

func textToKeys(text string) []input.Key {
	keys := make([]input.Key, 0, len(text))
	for _, r := range text {
		keys = append(keys, input.Key(r))
	}
	return keys
}

var chromeNetErrRe = regexp.MustCompile(`net::(ERR_[A-Z_]+)`)

// classifyNavigationError maps chrome navigation failures onto typed
// errors: DNS and certificate problems get their own types, other
// chrome error pages become SiteError, everything else stays an
// engine-internal failure.
func classifyNavigationError(engineName, rawURL string, err error) error {
	msg := err.Error()
	if m := chromeNetErrRe.FindStringSubmatch(msg); m != nil {
		code := m[1]
		switch {
		case code == "ERR_NAME_NOT_RESOLVED":
			host := ""
			if u, perr := url.Parse(rawURL); perr == nil {
				host = u.Hostname()
			}
			return &scrape.DNSResolutionError{Host: host}
		case strings.HasPrefix(code, "ERR_CERT") || strings.HasPrefix(code, "ERR_SSL"):
			return &scrape.SSLError{Err: err}
		default:
			return &scrape.SiteError{Code: code}
		}
	}
	return &scrape.EngineError{Engine: engineName, Err: err}
}
