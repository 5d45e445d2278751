package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// HTTPRenderer fetches pages with a plain HTTP client. No JavaScript runs.
type HTTPRenderer struct {
	collector *colly.Collector
}

// HTTPOptions configures an HTTPRenderer
type HTTPOptions struct {
	UserAgent        string
	Timeout          time.Duration
	RespectRobotsTxt bool
}

// NewHTTPRenderer creates a renderer backed by a colly collector
func NewHTTPRenderer(opts HTTPOptions) *HTTPRenderer {
	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
		colly.AllowURLRevisit(), // the frontier owns dedup
	)
	c.IgnoreRobotsTxt = !opts.RespectRobotsTxt

	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	return &HTTPRenderer{collector: c}
}

type fetchResult struct {
	page *Page
	err  error
}

// Render fetches url synchronously on a cloned collector
func (r *HTTPRenderer) Render(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	c := r.collector.Clone()
	c.IgnoreRobotsTxt = r.collector.IgnoreRobotsTxt

	var (
		page     *Page
		fetchErr error
	)

	c.OnResponse(func(resp *colly.Response) {
		finalURL := resp.Request.URL.String()
		parsed, err := ParseHTML(url, finalURL, resp.StatusCode, resp.Body)
		if err != nil {
			fetchErr = &Error{URL: url, StatusCode: resp.StatusCode, Err: err}
			return
		}
		page = parsed
	})

	c.OnError(func(resp *colly.Response, err error) {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		fetchErr = &Error{URL: url, StatusCode: status, Err: err}
	})

	done := make(chan fetchResult, 1)
	go func() {
		err := c.Visit(url)
		if fetchErr != nil {
			err = fetchErr
		} else if err != nil {
			err = &Error{URL: url, Err: err}
		} else if page == nil {
			err = &Error{URL: url, Err: errors.New("empty response")}
		}
		done <- fetchResult{page: page, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		logrus.Debugf("Rendered %s (status=%d, %d bytes)", url, res.page.StatusCode, len(res.page.HTML))
		return res.page, nil
	case <-ctx.Done():
		// the request itself is bounded by the collector timeout
		return nil, &Error{URL: url, Err: fmt.Errorf("navigation aborted: %w", ctx.Err())}
	}
}
