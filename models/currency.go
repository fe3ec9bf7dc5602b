package models

import "sync"

// Well known product ids. BTC-USD and BTC-EUR are always subscribed because
// the EUR-USD cross rate is derived from them.
const (
	ProductBTCUSD = "BTC-USD"
	ProductBTCEUR = "BTC-EUR"
	ProductEURUSD = "EUR-USD"
)

// Currency is the latest market snapshot for a single trading pair. Only
// ProductID and Price are guaranteed to be populated; the remaining stats are
// zero when the feed omitted them. The derived EUR-USD entry carries Price
// only.
type Currency struct {
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	Open24h   float64 `json:"open_24h,omitempty"`
	Volume24h float64 `json:"volume_24h,omitempty"`
	Low24h    float64 `json:"low_24h,omitempty"`
	High24h   float64 `json:"high_24h,omitempty"`
	Volume30d float64 `json:"volume_30d,omitempty"`
	BestBid   float64 `json:"best_bid,omitempty"`
	BestAsk   float64 `json:"best_ask,omitempty"`
}

// Currencies holds the latest Currency per trading pair. Ticks and balance
// refreshes mutate it from different goroutines, so access is guarded.
type Currencies struct {
	mu         sync.RWMutex
	currencies map[string]*Currency
}

func NewCurrencies() *Currencies {
	return &Currencies{
		currencies: make(map[string]*Currency),
	}
}

// Update inserts or replaces the currency for its trading pair and then
// rederives the EUR-USD cross rate. A nil currency is a no-op.
func (t *Currencies) Update(currency *Currency) {
	if currency == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.currencies[currency.ProductID]; ok {
		*existing = *currency
	} else {
		c := *currency
		t.currencies[currency.ProductID] = &c
	}

	t.deriveEURUSD()
}

// Get returns a copy of the currency for the given trading pair.
func (t *Currencies) Get(productID string) (Currency, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c, ok := t.currencies[productID]
	if !ok {
		return Currency{}, false
	}
	return *c, true
}

// Len returns the number of tracked trading pairs.
func (t *Currencies) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.currencies)
}

// deriveEURUSD recomputes the synthetic EUR-USD pair from the BTC-USD and
// BTC-EUR prices. Caller must hold the write lock.
func (t *Currencies) deriveEURUSD() {
	btcUSD, okUSD := t.currencies[ProductBTCUSD]
	btcEUR, okEUR := t.currencies[ProductBTCEUR]
	if !okUSD || !okEUR {
		return
	}

	price := btcUSD.Price / btcEUR.Price
	if existing, ok := t.currencies[ProductEURUSD]; ok {
		*existing = Currency{ProductID: ProductEURUSD, Price: price}
	} else {
		t.currencies[ProductEURUSD] = &Currency{ProductID: ProductEURUSD, Price: price}
	}
}
