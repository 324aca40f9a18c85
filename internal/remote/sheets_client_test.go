package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostdesk/syncengine/internal/constants"
)

var bookingSchema = []string{"guest", "check_in", "check_out"}

func newTestClient(serverURL string) *SheetsClient {
	return NewSheetsClient(serverURL, "sheet-1", &StaticTokenProvider{Value: "test-token"})
}

func TestSheetsClient_Pull_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.URL.Path != "/spreadsheets/sheet-1/values/Bookings" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token header, got %q", got)
		}

		resp := ValuesResponse{
			Range:          "Bookings",
			MajorDimension: "ROWS",
			Values: [][]string{
				{"sync_id", "guest", "check_in", "check_out", "last_sync"},
				{"a1", "Ann", "01.06.2025", "05.06.2025", "2025-06-01T10:00:00Z"},
				{"b2", "Bob"}, // short row: pad
				{"c3", "Cleo", "03.06.2025", "06.06.2025", "2025-06-02T10:00:00Z", "extra-cell"}, // long row: truncate
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tbl, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(tbl.Records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(tbl.Records))
	}

	ann := tbl.Find("a1")
	if ann == nil {
		t.Fatal("Record a1 not found")
	}
	if ann.Get("guest") != "Ann" || ann.Get("check_in") != "01.06.2025" {
		t.Errorf("Unexpected payload for a1: %v", ann.Payload)
	}
	if ann.LastSync.IsZero() {
		t.Error("Expected last_sync to be parsed for a1")
	}
	if ann.ContentHash == "" {
		t.Error("Expected content hash to be computed on pull")
	}

	bob := tbl.Find("b2")
	if bob == nil {
		t.Fatal("Record b2 not found")
	}
	if bob.Get("check_in") != "" {
		t.Errorf("Expected padded empty cell, got %q", bob.Get("check_in"))
	}
}

func TestSheetsClient_Pull_MintsMissingIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := ValuesResponse{
			Values: [][]string{
				{"sync_id", "guest"},
				{"", "Ann"},
			},
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tbl, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tbl.Records[0].SyncID == "" {
		t.Error("Expected a minted sync_id for the id-less remote row")
	}
}

func TestSheetsClient_Pull_EmptyTab(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ValuesResponse{Range: "Bookings"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tbl, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(tbl.Records) != 0 {
		t.Errorf("Expected empty table, got %d records", len(tbl.Records))
	}
}

func TestSheetsClient_Pull_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	if err == nil {
		t.Fatal("Expected error for 401 response")
	}
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %T", err)
	}
	if remoteErr.Code != constants.ErrCodeInvalidToken {
		t.Errorf("Expected code %s, got %s", constants.ErrCodeInvalidToken, remoteErr.Code)
	}
}

func TestSheetsClient_Pull_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Code != constants.ErrCodeRateLimited {
		t.Errorf("Expected code %s, got %s", constants.ErrCodeRateLimited, remoteErr.Code)
	}
}

func TestSheetsClient_Pull_TabNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"status":"INVALID_ARGUMENT","message":"Unable to parse range: Ghosts"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Pull(context.Background(), "bookings", "Ghosts", bookingSchema)
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("Expected RemoteError, got %v", err)
	}
	if remoteErr.Code != constants.ErrCodeTabNotFound {
		t.Errorf("Expected code %s, got %s", constants.ErrCodeTabNotFound, remoteErr.Code)
	}
}

func TestSheetsClient_Push_ClearsThenWrites(t *testing.T) {
	var calls []string
	var written ValuesPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == "PUT" {
			if err := json.NewDecoder(r.Body).Decode(&written); err != nil {
				t.Errorf("Failed to decode written payload: %v", err)
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tbl, err := client.Pull(context.Background(), "bookings", "Bookings", bookingSchema)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	calls = nil

	r := recordWith("a1", "Ann", "01.06.2025")
	tbl.Append(r)

	if err := client.Push(context.Background(), "Bookings", tbl); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("Expected clear + update calls, got %v", calls)
	}
	if calls[0] != "POST /spreadsheets/sheet-1/values/Bookings:clear" {
		t.Errorf("Expected clear call first, got %s", calls[0])
	}
	if calls[1] != "PUT /spreadsheets/sheet-1/values/Bookings" {
		t.Errorf("Expected update call second, got %s", calls[1])
	}

	if len(written.Values) != 2 {
		t.Fatalf("Expected header + 1 row, got %d rows", len(written.Values))
	}
	header := written.Values[0]
	if header[0] != "sync_id" || header[len(header)-1] != "last_sync" {
		t.Errorf("Unexpected header layout: %v", header)
	}
	if written.Values[1][0] != "a1" {
		t.Errorf("Expected sync_id a1 in first data row, got %v", written.Values[1])
	}
}

func TestSheetsClient_Push_AbortsOnClearFailure(t *testing.T) {
	var putCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			putCalled = true
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tbl, _ := emptyTable()
	if err := client.Push(context.Background(), "Bookings", tbl); err == nil {
		t.Fatal("Expected error when clear fails")
	}
	if putCalled {
		t.Error("Update must not run after a failed clear")
	}
}
