package feed

import (
	"encoding/json"
	"testing"
)

func TestDecodeTickerFrame(t *testing.T) {
	raw := `{
		"type": "ticker",
		"product_id": "BTC-USD",
		"price": "30000.50",
		"open_24h": "29000",
		"volume_24h": "12345.6",
		"low_24h": "28500",
		"high_24h": "30500",
		"volume_30d": "987654.3",
		"best_bid": "30000.49",
		"best_ask": "30000.51"
	}`

	decoded := DecodeFrame([]byte(raw))
	if decoded.Outcome != OutcomeTicker {
		t.Fatalf("expected ticker outcome, got %v", decoded.Outcome)
	}
	tick := decoded.Ticker
	if tick.ProductID != "BTC-USD" {
		t.Errorf("unexpected product id: %s", tick.ProductID)
	}
	if tick.Price != 30000.50 {
		t.Errorf("unexpected price: %v", tick.Price)
	}
	if tick.BestAsk != 30000.51 {
		t.Errorf("unexpected best ask: %v", tick.BestAsk)
	}
}

func TestDecodeTickerMissingOptionalStats(t *testing.T) {
	raw := `{"type":"ticker","product_id":"ETH-USD","price":"2000"}`

	decoded := DecodeFrame([]byte(raw))
	if decoded.Outcome != OutcomeTicker {
		t.Fatalf("expected ticker outcome, got %v", decoded.Outcome)
	}
	if decoded.Ticker.Volume24h != 0 || decoded.Ticker.BestBid != 0 {
		t.Errorf("expected zero optional stats, got %+v", decoded.Ticker)
	}
}

func TestDecodeSubscriptionsFrame(t *testing.T) {
	raw := `{"type":"subscriptions","channels":[{"name":"ticker","product_ids":["BTC-USD","BTC-EUR"]}]}`

	decoded := DecodeFrame([]byte(raw))
	if decoded.Outcome != OutcomeSubscriptions {
		t.Fatalf("expected subscriptions outcome, got %v", decoded.Outcome)
	}
	if len(decoded.Subscriptions) != 1 || decoded.Subscriptions[0].Name != "ticker" {
		t.Errorf("unexpected channels: %+v", decoded.Subscriptions)
	}
}

func TestDecodeIgnoredFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{"type":"ticker","product_id":`},
		{"unknown type", `{"type":"heartbeat","sequence":1}`},
		{"ticker without product id", `{"type":"ticker","price":"100"}`},
		{"ticker without price", `{"type":"ticker","product_id":"BTC-USD"}`},
		{"ticker with bad price", `{"type":"ticker","product_id":"BTC-USD","price":"n/a"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if decoded := DecodeFrame([]byte(tc.raw)); decoded.Outcome != OutcomeIgnored {
				t.Fatalf("expected ignored outcome, got %v", decoded.Outcome)
			}
		})
	}
}

func TestSubscribeRequestShape(t *testing.T) {
	req := newSubscribeRequest([]string{"BTC-EUR", "BTC-USD", "ETH-USD"})
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type       string   `json:"type"`
		ProductIDs []string `json:"product_ids"`
		Channels   []struct {
			Name       string   `json:"name"`
			ProductIDs []string `json:"product_ids"`
		} `json:"channels"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "subscribe" {
		t.Errorf("unexpected type: %s", decoded.Type)
	}
	if len(decoded.ProductIDs) != 3 {
		t.Errorf("unexpected product ids: %v", decoded.ProductIDs)
	}
	if len(decoded.Channels) != 1 || decoded.Channels[0].Name != "ticker" {
		t.Errorf("unexpected channels: %+v", decoded.Channels)
	}
}
