package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// BrowserOptions configures a BrowserRenderer
type BrowserOptions struct {
	Headless       bool
	UserAgent      string
	Timeout        time.Duration // navigation budget per page
	WaitForContent time.Duration // budget for the body to become ready
	ExecPath       string
}

// BrowserRenderer renders pages in a shared headless Chrome, one tab per page
type BrowserRenderer struct {
	opts        BrowserOptions
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// NewBrowserRenderer prepares a Chrome allocator. The browser starts lazily on first Render.
func NewBrowserRenderer(parent context.Context, opts BrowserOptions) *BrowserRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)

	return &BrowserRenderer{
		opts:        opts,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}
}

// Render navigates a fresh tab to url and reads the DOM once the body is ready.
// A body that is not ready within WaitForContent is read as-is.
func (r *BrowserRenderer) Render(ctx context.Context, url string) (*Page, error) {
	// tabs only share one browser once it is running
	r.startOnce.Do(func() {
		r.startErr = chromedp.Run(r.browserCtx)
	})
	if r.startErr != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("failed to start browser: %w", r.startErr)}
	}

	tabCtx, closeTab := chromedp.NewContext(r.browserCtx)
	defer closeTab()

	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	navCtx, cancel := context.WithTimeout(tabCtx, r.opts.Timeout)
	defer cancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return nil, &Error{URL: url, Err: r.cause(ctx, err)}
	}

	status := 0
	finalURL := url
	if resp != nil {
		status = int(resp.Status)
		finalURL = resp.URL
	}
	if status >= 400 {
		return nil, &Error{URL: url, StatusCode: status, Err: fmt.Errorf("unexpected status")}
	}

	if r.opts.WaitForContent > 0 {
		waitCtx, cancelWait := context.WithTimeout(navCtx, r.opts.WaitForContent)
		if err := chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			logrus.Debugf("Body of %s not ready after %v, reading DOM as-is", url, r.opts.WaitForContent)
		}
		cancelWait()
	}

	var html, text string
	if err := chromedp.Run(navCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	); err != nil {
		return nil, &Error{URL: url, StatusCode: status, Err: r.cause(ctx, err)}
	}

	page, err := ParseHTML(url, finalURL, status, []byte(html))
	if err != nil {
		return nil, &Error{URL: url, StatusCode: status, Err: err}
	}
	if text != "" {
		page.Text = text
	}

	return page, nil
}

// cause prefers the caller's cancellation over chromedp's wrapped error
func (r *BrowserRenderer) cause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close shuts down the browser
func (r *BrowserRenderer) Close() error {
	r.cancelTab()
	r.cancelAlloc()
	return nil
}
