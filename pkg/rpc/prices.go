package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"fundboard/pkg/fetch"
)

var CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// PriceClient reads USD prices from a CoinGecko-compatible API through the
// cached fetch client.
type PriceClient struct {
	fetcher *fetch.Client
	baseURL string
	ttl     time.Duration
}

func NewPriceClient(fetcher *fetch.Client, baseURL string, ttl time.Duration) *PriceClient {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	if ttl <= 0 {
		ttl = fetch.DefaultCacheTTL
	}
	return &PriceClient{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}
}

// PriceURL builds the simple/price request for the given coin ids.
func (p *PriceClient) PriceURL(coinIDs []string) string {
	return fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", p.baseURL, url.QueryEscape(strings.Join(coinIDs, ",")))
}

// FetchPrices returns the USD price per coin id. Unknown ids are absent from
// the result.
func (p *PriceClient) FetchPrices(ctx context.Context, coinIDs []string) (map[string]float64, error) {
	ids := normalizeIDs(coinIDs)
	prices := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	data, err := p.fetcher.FetchCached(ctx, p.PriceURL(ids), fetch.Options{}, p.ttl)
	if err != nil {
		return nil, err
	}
	var result map[string]map[string]float64
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}
	for id, quotes := range result {
		if usd, ok := quotes["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}

// normalizeIDs sorts and de-duplicates ids so equal sets share a cache entry.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
