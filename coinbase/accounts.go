// Package coinbase fetches account balances from the Coinbase Exchange REST
// API using the legacy CB-ACCESS key scheme.
package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"coinview/config"
	"coinview/logger"
)

const accountsPath = "/accounts"

// Account is a single wallet on the exchange. Balance stays a string until
// the portfolio layer parses it, matching the wire format.
type Account struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Hold      string `json:"hold"`
}

type Client struct {
	baseURL    string
	key        string
	secret     string
	passphrase string
	pageLimit  int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Entry
}

func NewClient(cfg config.CoinbaseConfig) *Client {
	rps := cfg.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = rps
	}
	return &Client{
		baseURL:    cfg.RESTURL,
		key:        cfg.Key,
		secret:     cfg.Secret,
		passphrase: cfg.Passphrase,
		pageLimit:  cfg.PageLimit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		log:        logger.GetLogger().WithComponent("coinbase"),
	}
}

// ListAccounts walks the paginated accounts endpoint until the exchange stops
// returning a CB-AFTER cursor. Pages are requested in order, so the result
// preserves the exchange ordering.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	after := ""
	for {
		page, next, err := c.fetchPage(ctx, after)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, page...)
		if next == "" || len(page) == 0 {
			return accounts, nil
		}
		after = next
	}
}

func (c *Client) fetchPage(ctx context.Context, after string) ([]Account, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	reqURL, err := url.Parse(c.baseURL + accountsPath)
	if err != nil {
		return nil, "", fmt.Errorf("invalid accounts URL: %w", err)
	}
	q := reqURL.Query()
	q.Set("limit", strconv.Itoa(c.pageLimit))
	if after != "" {
		q.Set("after", after)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create accounts request: %w", err)
	}
	if err := c.sign(req); err != nil {
		return nil, "", err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("accounts request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		c.log.WithFields(logger.Fields{
			"status":  res.StatusCode,
			"message": apiErr.Message,
		}).Warn("accounts request rejected")
		return nil, "", fmt.Errorf("accounts request returned status %d", res.StatusCode)
	}

	var page []Account
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("failed to decode accounts page: %w", err)
	}
	return page, res.Header.Get("CB-AFTER"), nil
}

// sign adds the CB-ACCESS headers. The prehash is
// timestamp + method + requestPath (including query) + body, signed with the
// base64-decoded API secret.
func (c *Client) sign(req *http.Request) error {
	secret, err := base64.StdEncoding.DecodeString(c.secret)
	if err != nil {
		return fmt.Errorf("invalid API secret: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	requestPath := req.URL.Path
	if req.URL.RawQuery != "" {
		requestPath += "?" + req.URL.RawQuery
	}
	prehash := timestamp + req.Method + requestPath

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(prehash))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("CB-ACCESS-KEY", c.key)
	req.Header.Set("CB-ACCESS-SIGN", signature)
	req.Header.Set("CB-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("CB-ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")
	return nil
}
