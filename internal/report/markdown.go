package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// WriteMarkdown renders the final summary as a Markdown report
func WriteMarkdown(w io.Writer, final storage.FinalSummary) error {
	md := markdown.NewMarkdown(w)

	md.H1("Contact Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Targets", strconv.Itoa(final.TotalURLs)},
			{"Unique Emails", strconv.Itoa(final.TotalEmails)},
			{"Duration", (time.Duration(final.DurationMs) * time.Millisecond).String()},
		},
	})
	md.PlainText("")

	writeTargets(md, final.Results)

	md.H2("All Emails")
	md.PlainText("")
	if len(final.AllEmails) == 0 {
		md.PlainText("No emails found.")
	} else {
		md.BulletList(final.AllEmails...)
	}
	md.PlainText("")

	return md.Build()
}

func writeTargets(md *markdown.Markdown, results []storage.RunSummary) {
	md.H2("Targets")
	md.PlainText("")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			"`" + r.URL + "`",
			statusText(r.Status),
			strconv.Itoa(r.PagesScraped),
			strconv.Itoa(r.PagesFailed),
			strconv.Itoa(len(r.Emails)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Status", "Pages Scraped", "Pages Failed", "Emails"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range results {
		md.H3(r.URL)
		md.PlainText("")
		if r.Error != "" {
			md.PlainText("Error: " + r.Error)
			md.PlainText("")
		}
		if len(r.Emails) > 0 {
			md.BulletList(r.Emails...)
			md.PlainText("")
		}
		if len(r.SocialProfiles) > 0 {
			md.PlainText("Social profiles:")
			md.PlainText("")
			md.BulletList(r.SocialProfiles...)
			md.PlainText("")
		}
	}
}

func statusText(status storage.RunStatus) string {
	switch status {
	case storage.StatusSuccess:
		return "✅ " + string(status)
	case storage.StatusPartialFailure:
		return "⚠️ " + string(status)
	default:
		return "❌ " + string(status)
	}
}

// WriteMarkdownFile writes the Markdown report to path, creating parent directories
func WriteMarkdownFile(path string, final storage.FinalSummary) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // path comes from the operator's config
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}

	if err := WriteMarkdown(f, final); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
