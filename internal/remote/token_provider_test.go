package remote

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"hostdesk/syncengine/internal/record"
)

func recordWith(syncID, guest, checkIn string) *record.Record {
	r := record.NewRecord()
	r.SyncID = syncID
	r.Set("guest", guest)
	r.Set("check_in", checkIn)
	return r
}

func emptyTable() (*record.Table, error) {
	return record.NewTable("bookings", bookingSchema), nil
}

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return string(pem.EncodeToMemory(block))
}

func TestServiceTokenProvider_ExchangesAndCaches(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm failed: %v", err)
		}
		if r.PostForm.Get("grant_type") != "urn:ietf:params:oauth:grant-type:jwt-bearer" {
			t.Errorf("Unexpected grant_type %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("assertion") == "" {
			t.Error("Expected a signed assertion")
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "bearer-1",
			TokenType:   "Bearer",
			ExpiresIn:   3600,
		})
	}))
	defer server.Close()

	provider, err := NewServiceTokenProvider(server.URL, "svc@example.test", testPrivateKeyPEM(t))
	if err != nil {
		t.Fatalf("NewServiceTokenProvider failed: %v", err)
	}

	ctx := context.Background()
	token, err := provider.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "bearer-1" {
		t.Errorf("Expected bearer-1, got %s", token)
	}

	// Second call must come from cache
	if _, err := provider.Token(ctx); err != nil {
		t.Fatalf("Second Token call failed: %v", err)
	}
	if exchanges != 1 {
		t.Errorf("Expected one exchange, got %d", exchanges)
	}
}

func TestServiceTokenProvider_ShortLivedTokenNotCached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "bearer-short",
			ExpiresIn:   30, // below the refresh skew
		})
	}))
	defer server.Close()

	provider, err := NewServiceTokenProvider(server.URL, "svc@example.test", testPrivateKeyPEM(t))
	if err != nil {
		t.Fatalf("NewServiceTokenProvider failed: %v", err)
	}

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if _, found := provider.tokens.Get(tokenCacheKey); found {
		t.Error("Token inside the expiry skew must not be cached")
	}
}

func TestServiceTokenProvider_EndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"access_denied"}`))
	}))
	defer server.Close()

	provider, err := NewServiceTokenProvider(server.URL, "svc@example.test", testPrivateKeyPEM(t))
	if err != nil {
		t.Fatalf("NewServiceTokenProvider failed: %v", err)
	}

	if _, err := provider.Token(context.Background()); err == nil {
		t.Fatal("Expected error when the token endpoint rejects the assertion")
	}
}

func TestServiceTokenProvider_BadKey(t *testing.T) {
	if _, err := NewServiceTokenProvider("http://localhost", "svc@example.test", "not a pem"); err == nil {
		t.Fatal("Expected error for a malformed private key")
	}
}

func TestStaticTokenProvider(t *testing.T) {
	p := &StaticTokenProvider{Value: "abc"}
	token, err := p.Token(context.Background())
	if err != nil || token != "abc" {
		t.Errorf("Expected abc, got %q (%v)", token, err)
	}

	empty := &StaticTokenProvider{}
	if _, err := empty.Token(context.Background()); err == nil {
		t.Error("Expected error for empty static token")
	}
}
