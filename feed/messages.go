package feed

import (
	"encoding/json"
	"strconv"
)

const (
	msgTypeSubscribe     = "subscribe"
	msgTypeUnsubscribe   = "unsubscribe"
	msgTypeTicker        = "ticker"
	msgTypeSubscriptions = "subscriptions"

	channelTicker = "ticker"
)

type subscribeChannel struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

type subscribeRequest struct {
	Type       string             `json:"type"`
	ProductIDs []string           `json:"product_ids"`
	Channels   []subscribeChannel `json:"channels"`
}

type unsubscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

func newSubscribeRequest(productIDs []string) subscribeRequest {
	return subscribeRequest{
		Type:       msgTypeSubscribe,
		ProductIDs: productIDs,
		Channels: []subscribeChannel{
			{Name: channelTicker, ProductIDs: productIDs},
		},
	}
}

func newUnsubscribeRequest() unsubscribeRequest {
	return unsubscribeRequest{
		Type:     msgTypeUnsubscribe,
		Channels: []string{channelTicker},
	}
}

// Ticker is a decoded price update for a single trading pair. Numeric fields
// arrive as strings on the wire; optional stats decode to zero when absent.
type Ticker struct {
	ProductID string
	Price     float64
	Open24h   float64
	Volume24h float64
	Low24h    float64
	High24h   float64
	Volume30d float64
	BestBid   float64
	BestAsk   float64
}

// ChannelSubscription is one channel entry of a subscriptions acknowledgment.
type ChannelSubscription struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
}

// Outcome classifies a decoded inbound frame. Frames the client does not
// recognise, including unparseable ones, decode to OutcomeIgnored: dropping
// them is the expected non-fatal path, not a swallowed error.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeTicker
	OutcomeSubscriptions
)

// Decoded is the result of decoding one inbound frame.
type Decoded struct {
	Outcome       Outcome
	Ticker        Ticker
	Subscriptions []ChannelSubscription
}

// DecodeFrame parses an inbound feed frame. It never returns an error: a
// malformed frame, an unknown type, or a ticker without product id and price
// all yield OutcomeIgnored.
func DecodeFrame(data []byte) Decoded {
	var probe struct {
		Type      string                `json:"type"`
		ProductID string                `json:"product_id"`
		Price     string                `json:"price"`
		Open24h   string                `json:"open_24h"`
		Volume24h string                `json:"volume_24h"`
		Low24h    string                `json:"low_24h"`
		High24h   string                `json:"high_24h"`
		Volume30d string                `json:"volume_30d"`
		BestBid   string                `json:"best_bid"`
		BestAsk   string                `json:"best_ask"`
		Channels  []ChannelSubscription `json:"channels"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Decoded{Outcome: OutcomeIgnored}
	}

	switch probe.Type {
	case msgTypeTicker:
		if probe.ProductID == "" {
			return Decoded{Outcome: OutcomeIgnored}
		}
		price, err := strconv.ParseFloat(probe.Price, 64)
		if err != nil {
			return Decoded{Outcome: OutcomeIgnored}
		}
		return Decoded{
			Outcome: OutcomeTicker,
			Ticker: Ticker{
				ProductID: probe.ProductID,
				Price:     price,
				Open24h:   parseOptional(probe.Open24h),
				Volume24h: parseOptional(probe.Volume24h),
				Low24h:    parseOptional(probe.Low24h),
				High24h:   parseOptional(probe.High24h),
				Volume30d: parseOptional(probe.Volume30d),
				BestBid:   parseOptional(probe.BestBid),
				BestAsk:   parseOptional(probe.BestAsk),
			},
		}
	case msgTypeSubscriptions:
		return Decoded{
			Outcome:       OutcomeSubscriptions,
			Subscriptions: probe.Channels,
		}
	default:
		return Decoded{Outcome: OutcomeIgnored}
	}
}

func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
