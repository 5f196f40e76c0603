package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ventura3351/multiapps/pkg/bundle"
)

// ChromeDriver runs each session in its own Chrome process via chromedp.
type ChromeDriver struct {
	Headless bool
	ExecPath string
	Timeout  time.Duration
}

func (d *ChromeDriver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !d.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if d.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.ExecPath))
	}
	return opts
}

func (d *ChromeDriver) Open(ctx context.Context, target string, cookies []bundle.Cookie) (func(), error) {
	// The browser outlives the request, so it must not inherit ctx.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), d.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	release := func() {
		cancelBrowser()
		cancelAlloc()
	}

	runCtx, cancelRun := context.WithCancel(browserCtx)
	defer cancelRun()
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, d.Timeout)
		defer cancel()
	}

	err := chromedp.Run(runCtx,
		chromedp.Navigate(target),
		network.ClearBrowserCookies(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				if err := setCookie(ctx, c); err != nil {
					return fmt.Errorf("set cookie %s: %w", c.Name, err)
				}
			}
			return nil
		}),
		chromedp.Reload(),
	)
	if err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func setCookie(ctx context.Context, c bundle.Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	p := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if ss := sameSite(c.SameSite); ss != "" {
		p = p.WithSameSite(ss)
	}
	if exp := c.Expires(); exp != nil {
		t := cdp.TimeSinceEpoch(*exp)
		p = p.WithExpires(&t)
	}
	return p.Do(ctx)
}

func sameSite(v string) network.CookieSameSite {
	switch v {
	case "Strict", "strict":
		return network.CookieSameSiteStrict
	case "Lax", "lax":
		return network.CookieSameSiteLax
	case "None", "none", "no_restriction":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}
