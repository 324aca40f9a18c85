package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hostdesk/syncengine/internal/ingest"
	"hostdesk/syncengine/internal/models"
	"hostdesk/syncengine/internal/models/dtos/responses"
	"hostdesk/syncengine/internal/store"
)

var testSecret = []byte("webhook-secret")

func newTestLedger(t *testing.T) *ingest.LedgerRepo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gormlib.Open(sqlite.Open(path), &gormlib.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ingest.LedgerEntry{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return ingest.NewLedgerRepo(db)
}

func newTestWebhookHandler(t *testing.T, dataDir string) *WebhookHandler {
	t.Helper()
	files := store.NewFlatFileStore(dataDir)
	gate := ingest.NewGate("bookings", models.BookingSchema, files, newTestLedger(t), nil, testSecret)
	return NewWebhookHandler(gate, nil, nil)
}

func deliveryBody(t *testing.T, id, eventType string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":     id,
		"type":   eventType,
		"sender": map[string]string{"id": "mk-7", "name": "Marketplace"},
		"payload": map[string]string{
			"guest_name": "Ann",
			"check_in":   "01.06.2025",
			"check_out":  "05.06.2025",
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return body
}

func postDelivery(t *testing.T, h *WebhookHandler, body []byte, signature string) (*httptest.ResponseRecorder, *responses.APIResponse[responses.IngestResponse]) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhook/marketplace", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}

	rr := httptest.NewRecorder()
	h.MarketplaceWebhook().ServeHTTP(rr, req)

	var response responses.APIResponse[responses.IngestResponse]
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return rr, &response
}

func TestMarketplaceWebhook_Commits(t *testing.T) {
	h := newTestWebhookHandler(t, t.TempDir())
	body := deliveryBody(t, "m-1", "booking_request")

	rr, resp := postDelivery(t, h, body, ingest.Sign(testSecret, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if resp.Status != "success" {
		t.Errorf("Expected success status, got %s", resp.Status)
	}
	if resp.Data == nil {
		t.Fatal("Expected a data payload")
	}
	if resp.Data.Outcome != string(ingest.StateCommitted) {
		t.Errorf("Expected committed outcome, got %s", resp.Data.Outcome)
	}
	if resp.Data.SyncID == "" {
		t.Error("Expected a minted sync_id in the response")
	}
	if resp.Data.Table != "bookings" {
		t.Errorf("Expected table bookings, got %s", resp.Data.Table)
	}
}

func TestMarketplaceWebhook_DuplicateAnswers200(t *testing.T) {
	h := newTestWebhookHandler(t, t.TempDir())
	body := deliveryBody(t, "m-2", "booking_request")
	sig := ingest.Sign(testSecret, body)

	postDelivery(t, h, body, sig)
	rr, resp := postDelivery(t, h, body, sig)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on redelivery, got %d", rr.Code)
	}
	if resp.Data.Outcome != string(ingest.StateDuplicateSkipped) {
		t.Errorf("Expected duplicate_skipped, got %s", resp.Data.Outcome)
	}
	if resp.Data.SyncID != "" {
		t.Errorf("Duplicate must not expose a sync_id, got %s", resp.Data.SyncID)
	}
}

func TestMarketplaceWebhook_BadSignatureAnswers200Filtered(t *testing.T) {
	h := newTestWebhookHandler(t, t.TempDir())
	body := deliveryBody(t, "m-3", "booking_request")

	rr, resp := postDelivery(t, h, body, "deadbeef")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for a filtered delivery, got %d", rr.Code)
	}
	if resp.Data.Outcome != string(ingest.StateFilteredOut) {
		t.Errorf("Expected filtered_out, got %s", resp.Data.Outcome)
	}
}

func TestMarketplaceWebhook_StorageFailureAnswers500(t *testing.T) {
	// A data dir nested under a regular file makes the flat-file append fail.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create blocker file: %v", err)
	}
	h := newTestWebhookHandler(t, filepath.Join(blocker, "data"))

	body := deliveryBody(t, "m-4", "booking_request")
	req := httptest.NewRequest("POST", "/webhook/marketplace", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, ingest.Sign(testSecret, body))

	rr := httptest.NewRecorder()
	h.MarketplaceWebhook().ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}

	var response responses.APIResponse[any]
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "error" {
		t.Errorf("Expected error status, got %s", response.Status)
	}
}
