package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/model"
)

// HTTPFetcher implements Fetcher against a remote strategy registry.
type HTTPFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPFetcher creates a new fetcher with optional proxy support.
func NewHTTPFetcher(baseURL, apiKey, proxyURL string) *HTTPFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// remoteStrategy is the expected JSON shape from the registry.
type remoteStrategy struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	TokenSymbol string          `json:"tokenSymbol"`
	APY         float64         `json:"apy"`
	TVL         decimal.Decimal `json:"tvl"`
	RiskLevel   string          `json:"riskLevel"`
}

func (f *HTTPFetcher) FetchStrategies(ctx context.Context) ([]model.Strategy, error) {
	endpoint := f.BaseURL + "/api/v1/strategies"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch strategies: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch strategies: status %d, body: %s", resp.StatusCode, string(body))
	}
	var remote []remoteStrategy
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}
	if len(remote) == 0 {
		return nil, fmt.Errorf("fetch strategies: empty registry")
	}

	out := make([]model.Strategy, 0, len(remote))
	for _, r := range remote {
		r.Name = strings.TrimSpace(r.Name)
		r.TokenSymbol = strings.TrimSpace(r.TokenSymbol)
		if r.Address == "" {
			continue
		}
		risk := model.RiskTier(r.RiskLevel)
		if !risk.Valid() {
			risk = model.RiskMedium
		}
		if err := model.CheckStrategy(r.Name, r.TokenSymbol, r.APY, r.TVL, risk); err != nil {
			log.Printf("[WARN] skipping registry strategy %s: %v", r.Address, err)
			continue
		}
		out = append(out, model.Strategy{
			ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.Address)).String(),
			Address:     r.Address,
			Name:        r.Name,
			AssetSymbol: r.TokenSymbol,
			Asset:       model.AssetKindOf(r.TokenSymbol),
			APY:         r.APY,
			TVL:         r.TVL,
			Risk:        risk,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("fetch strategies: no usable entries")
	}
	return out, nil
}
