// Package builtin provides ready-made tools that ship with the module.
package builtin

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/sweetpotato0/chatflow/tool"
)

const (
	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 2 << 20
	// defaultMaxTextRunes caps the extracted text handed back to the model.
	defaultMaxTextRunes = 8000

	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "chatflow/0.1"
)

// WebpageOption configures the webpage tool.
type WebpageOption func(*webpageConfig)

type webpageConfig struct {
	client       *http.Client
	maxTextRunes int
	userAgent    string
}

// WithHTTPClient replaces the HTTP client used for fetching pages.
func WithHTTPClient(client *http.Client) WebpageOption {
	return func(cfg *webpageConfig) {
		if client != nil {
			cfg.client = client
		}
	}
}

// WithMaxText limits the extracted text to at most n runes.
func WithMaxText(n int) WebpageOption {
	return func(cfg *webpageConfig) {
		if n > 0 {
			cfg.maxTextRunes = n
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with fetches.
func WithUserAgent(ua string) WebpageOption {
	return func(cfg *webpageConfig) {
		if ua != "" {
			cfg.userAgent = ua
		}
	}
}

// Page is the structured result of a webpage fetch.
type Page struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Webpage returns a tool that fetches a URL and extracts its readable text.
// Its producer yields a fetch-status artifact first, then the page as the
// terminal artifact.
func Webpage(opts ...WebpageOption) *tool.Tool {
	cfg := webpageConfig{
		client:       &http.Client{Timeout: defaultFetchTimeout},
		maxTextRunes: defaultMaxTextRunes,
		userAgent:    defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &tool.Tool{
		Name:        "fetch_webpage",
		Description: "Fetch a web page and return its title and readable text content.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http(s) URL of the page to fetch",
				},
			},
			"required": []any{"url"},
		},
		Render: func(ctx context.Context, args map[string]any) iter.Seq2[tool.Artifact, error] {
			return func(yield func(tool.Artifact, error) bool) {
				rawURL, _ := args["url"].(string)
				if !yield(tool.Intermediate(fmt.Sprintf("Fetching %s...", rawURL)), nil) {
					return
				}
				page, err := fetchPage(ctx, cfg, rawURL)
				if err != nil {
					yield(tool.Artifact{}, err)
					return
				}
				display := page.Title
				if display == "" {
					display = rawURL
				}
				yield(tool.Terminal(display, page), nil)
			}
		},
	}
}

func fetchPage(ctx context.Context, cfg webpageConfig, rawURL string) (*Page, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("builtin: unsupported url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("builtin: build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", cfg.userAgent)

	resp, err := cfg.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("builtin: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("builtin: fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("builtin: read %s: %w", rawURL, err)
	}

	page, err := parsePage(string(body))
	if err != nil {
		return nil, err
	}
	page.URL = rawURL
	page.Text, page.Truncated = truncateRunes(page.Text, cfg.maxTextRunes)
	return page, nil
}

// parsePage extracts the title plus a markdown-ish rendering of headings,
// paragraphs, list items, code blocks and tables.
func parsePage(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("builtin: parse html: %w", err)
	}

	doc.Find("script,style,noscript").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	var blocks []string
	doc.Find("h1,h2,h3,h4,p,li,pre,table").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "h1":
			blocks = append(blocks, "# "+strings.TrimSpace(s.Text()))
		case "h2":
			blocks = append(blocks, "## "+strings.TrimSpace(s.Text()))
		case "h3":
			blocks = append(blocks, "### "+strings.TrimSpace(s.Text()))
		case "h4":
			blocks = append(blocks, "#### "+strings.TrimSpace(s.Text()))
		case "p":
			blocks = append(blocks, strings.TrimSpace(s.Text()))
		case "li":
			blocks = append(blocks, "- "+strings.TrimSpace(s.Text()))
		case "pre":
			blocks = append(blocks, "```\n"+strings.TrimSpace(s.Text())+"\n```")
		case "table":
			blocks = append(blocks, renderTable(s))
		}
	})

	text := tidyText(strings.Join(blocks, "\n\n"))
	if text == "" {
		// Pages without recognized blocks still get their raw body text.
		text = tidyText(doc.Find("body").Text())
	}
	return &Page{Title: title, Text: text}, nil
}

func renderTable(sel *goquery.Selection) string {
	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cols []string
		tr.Find("th,td").Each(func(_ int, td *goquery.Selection) {
			cols = append(cols, strings.TrimSpace(td.Text()))
		})
		if len(cols) > 0 {
			rows = append(rows, "| "+strings.Join(cols, " | ")+" |")
		}
	})
	return strings.Join(rows, "\n")
}

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// tidyText strips control characters, collapses space runs, and limits blank
// lines to one.
func tidyText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func truncateRunes(s string, max int) (string, bool) {
	if max <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s, false
	}
	return string(runes[:max]), true
}
