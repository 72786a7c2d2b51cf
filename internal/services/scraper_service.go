package services

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Response bodies larger than this are truncated during scraping.
const maxScrapeBodyBytes = 10 << 20

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// ScraperService fetches a web page and reduces it to plain text. A scrape
// runs to completion before control returns; no concurrent scrape/query
// overlap is assumed.
type ScraperService struct {
	httpClient *http.Client
	logger     *log.Logger
}

// NewScraperService creates a new scraper service.
func NewScraperService(logger *log.Logger) *ScraperService {
	return &ScraperService{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// ScrapeURL fetches the URL and returns its visible text with scripts,
// styles and markup stripped.
func (s *ScraperService) ScrapeURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("User-Agent", "rag-assistant/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch of %s returned %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	text := StripHTML(string(body))
	if text == "" {
		return "", fmt.Errorf("no readable text at %s", url)
	}

	s.logger.Printf("Scraped %s: %d characters of text", url, len(text))
	return text, nil
}

// StripHTML removes script and style blocks, then all tags, unescapes
// entities and collapses whitespace.
func StripHTML(markup string) string {
	text := scriptBlockRe.ReplaceAllString(markup, " ")
	text = styleBlockRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
