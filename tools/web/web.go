// Package web provides the web_fetch and web_search tools. Fetch
// extracts readable text from HTML (readability with a tag-stripping
// fallback), returns JSON verbatim, and text-extracts PDF responses;
// search scrapes the keyless DuckDuckGo HTML endpoint.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	grokcode "github.com/nevindra/grokcode"
)

const (
	fetchTimeout  = 30 * time.Second
	searchTimeout = 15 * time.Second

	maxFetchChars  = 50000
	maxSearchCount = 10
	maxBodyBytes   = 10 << 20 // 10MB download cap

	fetchUserAgent  = "grokCode/1.0"
	searchUserAgent = "Mozilla/5.0 (compatible; grokCode/1.0)"
	searchEndpoint  = "https://html.duckduckgo.com/html/"
)

// Tool implements web_fetch and web_search.
type Tool struct {
	fetchClient  *http.Client
	searchClient *http.Client
}

// New creates the web tool with its two timeout-scoped clients.
func New() *Tool {
	return &Tool{
		fetchClient:  &http.Client{Timeout: fetchTimeout},
		searchClient: &http.Client{Timeout: searchTimeout},
	}
}

func (t *Tool) Definitions() []grokcode.ToolDefinition {
	return []grokcode.ToolDefinition{
		{
			Name: "web_fetch",
			Description: `Fetch content from a URL and extract information. Use this to:
- Read documentation pages
- Fetch API responses
- Get content from public web pages

Note: Won't work for authenticated pages (login required).`,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"url": {"type": "string", "description": "The URL to fetch"},
					"prompt": {"type": "string", "description": "What information to extract from the page"}
				},
				"required": ["url", "prompt"]
			}`),
		},
		{
			Name: "web_search",
			Description: `Search the web for information. Returns search results with titles, URLs, and snippets.
Use for finding documentation, solutions, or current information.`,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "The search query"},
					"max_results": {"type": "integer", "description": "Maximum number of results (default 5, max 10)"}
				},
				"required": ["query"]
			}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (grokcode.ToolResult, error) {
	switch name {
	case "web_fetch":
		var params struct {
			URL    string `json:"url"`
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		return t.fetch(ctx, params.URL, params.Prompt)

	case "web_search":
		var params struct {
			Query      string `json:"query"`
			MaxResults int    `json:"max_results"`
		}
		if err := json.Unmarshal(args, &params); err != nil {
			return grokcode.ToolResult{Error: "invalid args: " + err.Error()}, nil
		}
		return t.search(ctx, params.Query, params.MaxResults)
	}
	return grokcode.ToolResult{Error: "unknown web tool: " + name}, nil
}

// fetch downloads rawURL and extracts text per content type.
func (t *Tool) fetch(ctx context.Context, rawURL, prompt string) (grokcode.ToolResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("Invalid URL: %v", err)}, nil
	}
	if parsed.Scheme == "" {
		rawURL = "https://" + rawURL
		parsed, err = url.Parse(rawURL)
		if err != nil {
			return grokcode.ToolResult{Error: fmt.Sprintf("Invalid URL: %v", err)}, nil
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return grokcode.ToolResult{Error: "Invalid URL scheme: " + parsed.Scheme}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("Invalid URL: %v", err)}, nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.fetchClient.Do(req)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("fetching URL: %v", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return grokcode.ToolResult{Error: fmt.Sprintf("HTTP %d - %s", resp.StatusCode, http.StatusText(resp.StatusCode))}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("reading response: %v", err)}, nil
	}

	contentType := resp.Header.Get("Content-Type")
	var text string
	switch {
	case strings.Contains(contentType, "application/json"):
		text = string(body)
	case strings.Contains(contentType, "application/pdf"):
		text, err = pdfToText(body)
		if err != nil {
			return grokcode.ToolResult{Error: fmt.Sprintf("extracting PDF text: %v", err)}, nil
		}
	case strings.Contains(contentType, "text/html"):
		text = htmlToText(string(body), parsed)
	default:
		text = string(body)
	}

	if len(text) > maxFetchChars {
		text = text[:maxFetchChars] + "\n\n... (truncated)"
	}
	return grokcode.ToolResult{Content: fmt.Sprintf("Content from %s:\n\n%s\n\n---\nUser prompt: %s", rawURL, text, prompt)}, nil
}

// htmlToText extracts readable text from an HTML document, preferring
// readability article extraction and falling back to structural tag
// stripping.
func htmlToText(doc string, pageURL *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(doc), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return strings.TrimSpace(article.TextContent)
	}
	return stripHTML(doc)
}

var (
	scriptRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	brRe      = regexp.MustCompile(`(?i)<br\s*/?>`)
	paraRe    = regexp.MustCompile(`(?i)</?p[^>]*>`)
	divRe     = regexp.MustCompile(`(?i)</?div[^>]*>`)
	liRe      = regexp.MustCompile(`(?i)<li[^>]*>`)
	hOpenRe   = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	hCloseRe  = regexp.MustCompile(`(?i)</h[1-6]>`)
	tagRe     = regexp.MustCompile(`<[^>]+>`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// stripHTML converts an HTML document to plain text: scripts and styles
// removed, structural tags to newlines and list markers, entities
// decoded, whitespace collapsed.
func stripHTML(doc string) string {
	doc = scriptRe.ReplaceAllString(doc, "")
	doc = styleRe.ReplaceAllString(doc, "")
	doc = brRe.ReplaceAllString(doc, "\n")
	doc = paraRe.ReplaceAllString(doc, "\n\n")
	doc = divRe.ReplaceAllString(doc, "\n")
	doc = liRe.ReplaceAllString(doc, "\n- ")
	doc = hOpenRe.ReplaceAllString(doc, "\n\n## ")
	doc = hCloseRe.ReplaceAllString(doc, "\n")
	doc = tagRe.ReplaceAllString(doc, "")
	doc = html.UnescapeString(doc)

	var lines []string
	for _, line := range strings.Split(doc, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.TrimSpace(newlineRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// pdfToText extracts plain text from a PDF document.
func pdfToText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// --- search ---

// SearchResult is one parsed search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

var (
	resultAnchorRe  = regexp.MustCompile(`<a rel="nofollow" class="result__a" href="([^"]+)"[^>]*>([^<]+)</a>`)
	resultSnippetRe = regexp.MustCompile(`<a class="result__snippet"[^>]*>([^<]+)</a>`)
)

// search sends the query as a GET to the DuckDuckGo HTML endpoint and parses
// result anchors and snippets.
func (t *Tool) search(ctx context.Context, query string, maxResults int) (grokcode.ToolResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	if maxResults > maxSearchCount {
		maxResults = maxSearchCount
	}

	endpoint := searchEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("performing search: %v", err)}, nil
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := t.searchClient.Do(req)
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("performing search: %v", err)}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return grokcode.ToolResult{Error: fmt.Sprintf("performing search: HTTP %d", resp.StatusCode)}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return grokcode.ToolResult{Error: fmt.Sprintf("performing search: %v", err)}, nil
	}

	results := ParseSearchResults(string(body), maxResults)
	if len(results) == 0 {
		return grokcode.ToolResult{Content: "No search results found for: " + query}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for: %s\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		b.WriteString("\n")
	}
	return grokcode.ToolResult{Content: strings.TrimRight(b.String(), "\n")}, nil
}

// ParseSearchResults extracts result entries from the DuckDuckGo HTML
// page, unwrapping the uddg= redirect URLs.
func ParseSearchResults(doc string, maxResults int) []SearchResult {
	anchors := resultAnchorRe.FindAllStringSubmatch(doc, -1)
	snippets := resultSnippetRe.FindAllStringSubmatch(doc, -1)

	var out []SearchResult
	for i, m := range anchors {
		if len(out) >= maxResults {
			break
		}
		r := SearchResult{
			Title: strings.TrimSpace(html.UnescapeString(m[2])),
			URL:   html.UnescapeString(m[1]),
		}
		if i < len(snippets) {
			r.Snippet = strings.TrimSpace(html.UnescapeString(snippets[i][1]))
		}
		// DuckDuckGo wraps targets in a redirect: //duckduckgo.com/l/?uddg=<escaped>
		if u, err := url.Parse(r.URL); err == nil {
			if uddg := u.Query().Get("uddg"); uddg != "" {
				r.URL = uddg
			}
		}
		out = append(out, r)
	}
	return out
}
