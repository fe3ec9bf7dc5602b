package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinview/config"
)

const testSecret = "dGVzdC1zZWNyZXQ=" // base64("test-secret")

func testCoinbaseConfig(url string) config.CoinbaseConfig {
	return config.CoinbaseConfig{
		RESTURL:    url,
		Key:        "test-key",
		Secret:     testSecret,
		Passphrase: "test-pass",
		Timeout:    2 * time.Second,
		PageLimit:  2,
		RateLimit:  config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 100},
	}
}

func TestListAccountsPaginates(t *testing.T) {
	pages := map[string][]Account{
		"": {
			{ID: "a1", Currency: "BTC", Balance: "1.5"},
			{ID: "a2", Currency: "ETH", Balance: "10"},
		},
		"a2": {
			{ID: "a3", Currency: "EUR", Balance: "250"},
		},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("expected limit=2, got %q", got)
		}
		after := r.URL.Query().Get("after")
		page, ok := pages[after]
		if !ok {
			t.Errorf("unexpected cursor %q", after)
		}
		if after == "" {
			w.Header().Set("CB-AFTER", "a2")
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	client := NewClient(testCoinbaseConfig(server.URL))
	accounts, err := client.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	if accounts[2].ID != "a3" || accounts[2].Currency != "EUR" {
		t.Fatalf("unexpected last account: %+v", accounts[2])
	}
}

func TestListAccountsSignsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("CB-ACCESS-KEY"); got != "test-key" {
			t.Errorf("expected key header, got %q", got)
		}
		if got := r.Header.Get("CB-ACCESS-PASSPHRASE"); got != "test-pass" {
			t.Errorf("expected passphrase header, got %q", got)
		}
		timestamp := r.Header.Get("CB-ACCESS-TIMESTAMP")
		if timestamp == "" {
			t.Error("missing timestamp header")
		}

		secret, _ := base64.StdEncoding.DecodeString(testSecret)
		requestPath := r.URL.Path + "?" + r.URL.RawQuery
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(timestamp + http.MethodGet + requestPath))
		want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("CB-ACCESS-SIGN"); got != want {
			t.Errorf("signature mismatch: got %q want %q", got, want)
		}

		json.NewEncoder(w).Encode([]Account{})
	}))
	defer server.Close()

	client := NewClient(testCoinbaseConfig(server.URL))
	if _, err := client.ListAccounts(context.Background()); err != nil {
		t.Fatalf("list accounts: %v", err)
	}
}

func TestListAccountsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid API Key"})
	}))
	defer server.Close()

	client := NewClient(testCoinbaseConfig(server.URL))
	if _, err := client.ListAccounts(context.Background()); err == nil {
		t.Fatal("expected error for unauthorized response")
	}
}
