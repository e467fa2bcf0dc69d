package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const casePage = `<!DOCTYPE html>
<html><body>
<div class="case-details">
  <h1 class="case-title">Ivanov v. Russia</h1>
  <span class="introduction-date">05/03/2020</span>
  <span class="representative-name">Petrova &amp; Partners</span>
  <table class="case-events">
    <tbody>
      <tr><td>10/03/2020</td><td>Application communicated</td></tr>
      <tr><td>22/09/2021</td><td>Observations received</td></tr>
      <tr><td>01/02/2023</td><td>Case finished</td></tr>
    </tbody>
  </table>
</div>
</body></html>`

const emptyResultPage = `<!DOCTYPE html>
<html><body><div class="search-results">No case matches your query.</div></body></html>`

func newTestFetcher(t *testing.T, handler http.Handler) (*HTMLFetcher, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher, err := NewHTMLFetcher(&HTMLFetcherConfig{BaseURL: server.URL, MaxRetries: 2})
	if err != nil {
		t.Fatalf("NewHTMLFetcher() error = %v", err)
	}
	// Keep test retries fast
	fetcher.retryCfg.InitialDelay = 0
	return fetcher, server
}

func TestHTMLFetcherExtractsRecord(t *testing.T) {
	var gotQuery atomic.Value
	fetcher, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(casePage))
	}))

	record, err := fetcher.Fetch(context.Background(), 814, 21)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if got := gotQuery.Load(); got != "814/21" {
		t.Errorf("requested id = %v, want 814/21", got)
	}
	if record.ApplicationNumber != "814/21" {
		t.Errorf("ApplicationNumber = %q, want 814/21", record.ApplicationNumber)
	}
	if record.Title != "Ivanov v. Russia" {
		t.Errorf("Title = %q", record.Title)
	}
	if record.IntroductionDate != "05/03/2020" {
		t.Errorf("IntroductionDate = %q", record.IntroductionDate)
	}
	if record.RepresentativeName != "Petrova & Partners" {
		t.Errorf("RepresentativeName = %q", record.RepresentativeName)
	}
	if len(record.Events) != 3 {
		t.Fatalf("len(Events) = %d, want 3", len(record.Events))
	}
	last, ok := record.LastEvent()
	if !ok || last.Description != "Case finished" || last.Date != "01/02/2023" {
		t.Errorf("LastEvent() = (%+v, %v)", last, ok)
	}
}

func TestHTMLFetcherNotFoundStatus(t *testing.T) {
	var requests atomic.Int32
	fetcher, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.NotFound(w, r)
	}))

	_, err := fetcher.Fetch(context.Background(), 1, 22)
	if !IsNotFound(err) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
	// A definitive 404 must not consume the retry budget.
	if n := requests.Load(); n != 1 {
		t.Errorf("registry hit %d times, want 1", n)
	}
}

func TestHTMLFetcherEmptyResultPage(t *testing.T) {
	fetcher, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(emptyResultPage))
	}))

	_, err := fetcher.Fetch(context.Background(), 99999, 22)
	if !IsNotFound(err) {
		t.Fatalf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestHTMLFetcherRetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	fetcher, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(casePage))
	}))

	record, err := fetcher.Fetch(context.Background(), 814, 21)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if record.Title != "Ivanov v. Russia" {
		t.Errorf("Title = %q", record.Title)
	}
	if n := requests.Load(); n != 3 {
		t.Errorf("registry hit %d times, want 3", n)
	}
}

func TestHTMLFetcherSurfacesTransportError(t *testing.T) {
	fetcher, _ := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := fetcher.Fetch(context.Background(), 814, 21)
	if err == nil {
		t.Fatal("Fetch() error = nil, want transport error")
	}
	if IsNotFound(err) {
		t.Error("transport failure reported as not-found")
	}
}
