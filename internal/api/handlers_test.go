package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/case-scanner/internal/crawler"
	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/storage"
	"github.com/case-scanner/internal/types"
)

type fakeApplicationReader struct {
	apps   map[string]*models.Application
	events map[int64][]models.Event
	err    error
}

func (f *fakeApplicationReader) GetByNumber(_ context.Context, applicationNumber string) (*models.Application, error) {
	if f.err != nil {
		return nil, f.err
	}
	if app, ok := f.apps[applicationNumber]; ok {
		return app, nil
	}
	return nil, storage.ErrApplicationNotFound
}

func (f *fakeApplicationReader) GetEvents(_ context.Context, applicationID int64) ([]models.Event, error) {
	return f.events[applicationID], nil
}

type fakeSubscriptionManager struct {
	created     []string
	deactivated []string
	err         error
}

func (f *fakeSubscriptionManager) Create(_ context.Context, applicationNumber string) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, applicationNumber)
	return &models.Subscription{
		ID:                1,
		CaseID:            42,
		ApplicationNumber: applicationNumber,
		Status:            types.SubscriptionActive,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func (f *fakeSubscriptionManager) Deactivate(_ context.Context, applicationNumber string) error {
	if f.err != nil {
		return f.err
	}
	f.deactivated = append(f.deactivated, applicationNumber)
	return nil
}

func createTestServer(apps *fakeApplicationReader, subs *fakeSubscriptionManager, stats StatsProvider) *Server {
	return NewServer(&ServerConfig{Host: "127.0.0.1", Port: "0"}, apps, subs, stats)
}

func seededReader() *fakeApplicationReader {
	return &fakeApplicationReader{
		apps: map[string]*models.Application{
			"814/21": {ID: 42, ApplicationNumber: "814/21", Title: "A v. B"},
		},
		events: map[int64][]models.Event{
			42: {{ID: 1, ApplicationID: 42, Description: "Application lodged", SortOrder: 0}},
		},
	}
}

func TestGetApplication(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/applications/814/21", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var app models.Application
	if err := json.Unmarshal(w.Body.Bytes(), &app); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if app.ApplicationNumber != "814/21" || app.Title != "A v. B" {
		t.Errorf("Unexpected application: %+v", app)
	}
}

func TestGetApplication_ZeroPadsYear(t *testing.T) {
	reader := seededReader()
	reader.apps["7/05"] = &models.Application{ID: 7, ApplicationNumber: "7/05", Title: "C v. D"}
	server := createTestServer(reader, &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/applications/7/5", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
}

func TestGetApplication_NotFound(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/applications/999/21", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetApplication_StorageError(t *testing.T) {
	reader := seededReader()
	reader.err = errors.New("connection refused")
	server := createTestServer(reader, &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/applications/814/21", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestGetEvents(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/applications/814/21/events", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		ApplicationNumber string         `json:"applicationNumber"`
		Events            []models.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Events) != 1 || resp.Events[0].Description != "Application lodged" {
		t.Errorf("Unexpected events: %+v", resp.Events)
	}
}

func TestCreateSubscription(t *testing.T) {
	subs := &fakeSubscriptionManager{}
	server := createTestServer(seededReader(), subs, nil)

	body, _ := json.Marshal(map[string]string{"applicationNumber": "814/21"})
	req := httptest.NewRequest("POST", "/api/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(subs.created) != 1 || subs.created[0] != "814/21" {
		t.Errorf("Created %v, want [814/21]", subs.created)
	}
}

func TestCreateSubscription_InvalidJSON(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("POST", "/api/subscriptions", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCreateSubscription_MalformedNumber(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	body, _ := json.Marshal(map[string]string{"applicationNumber": "not-an-id"})
	req := httptest.NewRequest("POST", "/api/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestCreateSubscription_UnknownCase(t *testing.T) {
	subs := &fakeSubscriptionManager{err: storage.ErrApplicationNotFound}
	server := createTestServer(seededReader(), subs, nil)

	body, _ := json.Marshal(map[string]string{"applicationNumber": "999/21"})
	req := httptest.NewRequest("POST", "/api/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeactivateSubscription(t *testing.T) {
	subs := &fakeSubscriptionManager{}
	server := createTestServer(seededReader(), subs, nil)

	req := httptest.NewRequest("DELETE", "/api/subscriptions/814/21", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if len(subs.deactivated) != 1 || subs.deactivated[0] != "814/21" {
		t.Errorf("Deactivated %v, want [814/21]", subs.deactivated)
	}
}

func TestStatus_NoActiveRun(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Running bool `json:"running"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Running {
		t.Error("Expected running=false without a stats provider")
	}
}

func TestStatus_ActiveRun(t *testing.T) {
	stats := crawler.NewStats(types.ModeMonthly)
	stats.CountOutcome(types.OutcomeFound)
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, stats)

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Running bool                  `json:"running"`
		Run     crawler.StatsSnapshot `json:"run"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Running || resp.Run.Found != 1 {
		t.Errorf("Unexpected status response: %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	server := createTestServer(seededReader(), &fakeSubscriptionManager{}, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}
