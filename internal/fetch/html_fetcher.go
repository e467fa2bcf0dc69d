package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/retry"
)

// httpStatusError is a non-2xx response from the registry. Server-side
// statuses are worth retrying; client-side ones are definitive.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("registry returned status %d", e.status)
}

func (e *httpStatusError) Retryable() bool {
	return e.status >= http.StatusInternalServerError
}

// HTMLFetcher fetches case pages from the registry and extracts the fixed
// field set from the DOM.
type HTMLFetcher struct {
	baseURL  string
	client   *http.Client
	retryCfg *retry.Config
}

// HTMLFetcherConfig holds configuration for an HTMLFetcher
type HTMLFetcherConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewHTMLFetcher creates a fetcher against the given registry base URL.
func NewHTMLFetcher(cfg *HTMLFetcherConfig) (*HTMLFetcher, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &HTMLFetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		retryCfg: &retry.Config{
			MaxAttempts:  maxRetries + 1,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// Fetch resolves one (number, year) pair to a case record. Transient
// transport failures are retried transparently; not-found is surfaced as
// ErrNotFound without retry.
func (f *HTMLFetcher) Fetch(ctx context.Context, number, year int) (*models.CaseRecord, error) {
	id := models.ApplicationID(number, year)
	pageURL := fmt.Sprintf("%s/case?id=%s", f.baseURL, url.QueryEscape(id))

	var doc *goquery.Document
	err := retry.Do(ctx, f.retryCfg, func(ctx context.Context, _ int) error {
		var reqErr error
		doc, reqErr = f.getDocument(ctx, pageURL)
		return reqErr
	})
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch case %s: %w", id, err)
	}

	record, ok := extractRecord(doc, id)
	if !ok {
		// The registry answers empty result pages with status 200.
		return nil, ErrNotFound
	}
	return record, nil
}

func (f *HTMLFetcher) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "case-scanner/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// extractRecord pulls the fixed field set out of a case page. Reports
// ok=false when the page carries no case details block.
func extractRecord(doc *goquery.Document, id string) (*models.CaseRecord, bool) {
	details := doc.Find("div.case-details").First()
	if details.Length() == 0 {
		return nil, false
	}

	record := &models.CaseRecord{
		ApplicationNumber:  id,
		Title:              text(details.Find("h1.case-title")),
		IntroductionDate:   text(details.Find("span.introduction-date")),
		RepresentativeName: text(details.Find("span.representative-name")),
	}

	details.Find("table.case-events tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		record.Events = append(record.Events, models.MajorEvent{
			Date:        text(cells.Eq(0)),
			Description: text(cells.Eq(1)),
		})
	})

	return record, true
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.First().Text())
}
