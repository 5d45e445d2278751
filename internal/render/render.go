// Package render fetches a page and turns it into the artifacts the crawler
// extracts from: visible text, raw markup, mailto hrefs and anchor hrefs.
package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Renderer renders one URL. Implementations must honor ctx cancellation.
type Renderer interface {
	Render(ctx context.Context, url string) (*Page, error)
}

// Page is a rendered document
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	Text        string
	HTML        string
	MailtoHrefs []string
	AnchorHrefs []string
}

// Error is a page-level render failure (timeout, network error, non-2xx status)
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("render %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Elements that never contribute visible text
var hiddenElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "head": true, "#comment": true,
}

// Elements that break text flow the way a browser's innerText does
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"p": true, "pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// ParseHTML builds a Page from raw markup
func ParseHTML(pageURL, finalURL string, status int, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		URL:        pageURL,
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       string(body),
		Text:       VisibleText(doc.Selection),
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if strings.HasPrefix(strings.ToLower(href), "mailto:") {
			page.MailtoHrefs = append(page.MailtoHrefs, href)
		} else {
			page.AnchorHrefs = append(page.AnchorHrefs, href)
		}
	})

	return page, nil
}

// VisibleText concatenates text nodes, skipping scripts and styles and
// separating block-level elements with whitespace.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder

	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			name := goquery.NodeName(child)
			switch {
			case name == "#text":
				b.WriteString(child.Text())
			case hiddenElements[name]:
			case blockElements[name]:
				b.WriteByte('\n')
				walk(child)
				b.WriteByte('\n')
			default:
				walk(child)
			}
		})
	}
	walk(sel)

	return strings.Join(strings.Fields(b.String()), " ")
}
