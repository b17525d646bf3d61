package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
	"YieldHarbor/internal/metrics"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/notifier"
	"YieldHarbor/internal/session"
	"YieldHarbor/internal/store"
	"YieldHarbor/internal/strategy"
)

const carol = "0x00000000000000000000000000000000000ca201"

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	ind := metrics.NewPromIndicators(reg, "test")

	repo := store.NewKVRepository(store.NewMemoryKV())
	catalog, err := strategy.LoadCatalog(t.Context(), nil, repo)
	require.NoError(t, err)
	ledger := fund.NewLedger(repo, catalog, fund.WithObserver(ind))
	vault := live.NewVault(live.NewMemoryProvider(decimal.NewFromInt(100), decimal.NewFromInt(1)))

	sessions := session.NewManager(ledger, vault, catalog)
	sessions.Tracker = ind
	hub := notifier.NewHub(nil)
	t.Cleanup(hub.Close)
	return NewRouter(NewHandler(sessions, catalog, hub), reg, nil)
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestDepositFlow(t *testing.T) {
	r := newServer(t)
	base := "/api/sessions/" + carol

	w := do(t, r, http.MethodGet, base+"/balance", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, base+"/connect", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var conn struct {
		Mode  model.Mode         `json:"mode"`
		State model.AccountState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conn))
	assert.Equal(t, model.ModeSimulated, conn.Mode)
	assert.True(t, conn.State.TokenBalance.Equal(decimal.NewFromInt(1000)))

	w = do(t, r, http.MethodPost, base+"/deposit", map[string]string{"amount": "250"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res session.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Transaction)
	assert.Equal(t, model.TxDeposit, res.Transaction.Kind)
	assert.Len(t, res.Transaction.Allocation, 4)

	w = do(t, r, http.MethodGet, base+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bal session.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bal))
	assert.True(t, bal.TokenBalance.Equal(decimal.NewFromInt(750)))
	assert.True(t, bal.Shares.Equal(decimal.NewFromInt(250)))

	w = do(t, r, http.MethodGet, base+"/transactions?filter=deposits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Transactions []model.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Transactions, 1)

	w = do(t, r, http.MethodGet, base+"/withdraw/preview?shares=100", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, base+"/withdraw", map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, base+"/performance", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_deposits_total 1")
	assert.Contains(t, w.Body.String(), "test_connected_sessions 1")

	w = do(t, r, http.MethodPost, base+"/disconnect", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestErrorMapping(t *testing.T) {
	r := newServer(t)
	base := "/api/sessions/" + carol
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, base+"/connect", nil).Code)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad identity", http.MethodPost, "/api/sessions/nope/connect", nil, http.StatusBadRequest},
		{"zero amount", http.MethodPost, base + "/deposit", map[string]string{"amount": "0"}, http.StatusBadRequest},
		{"garbage amount", http.MethodPost, base + "/deposit", map[string]string{"amount": "ten"}, http.StatusBadRequest},
		{"over balance", http.MethodPost, base + "/deposit", map[string]string{"amount": "1000.01"}, http.StatusUnprocessableEntity},
		{"over shares", http.MethodPost, base + "/withdraw", map[string]string{"amount": "1"}, http.StatusUnprocessableEntity},
		{"bad preview", http.MethodGet, base + "/withdraw/preview?shares=x", nil, http.StatusBadRequest},
		{"unknown strategy", http.MethodGet, "/api/strategies/0xdead", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestLiveModeRestrictions(t *testing.T) {
	r := newServer(t)
	base := "/api/sessions/" + carol
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, base+"/connect", nil).Code)

	w := do(t, r, http.MethodPost, base+"/mode/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"live"`)

	w = do(t, r, http.MethodGet, base+"/transactions", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	cand := map[string]any{"name": "Omega", "tokenSymbol": "ETH", "apy": 8, "tvl": "1000"}
	w = do(t, r, http.MethodPost, "/api/strategies?account="+carol, cand)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, base+"/deposit", map[string]string{"amount": "40"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"receipt"`)
}

func TestStrategies(t *testing.T) {
	r := newServer(t)
	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/sessions/"+carol+"/connect", nil).Code)

	cand := map[string]any{"name": "Omega", "tokenSymbol": "WBTC", "apy": 8, "tvl": "1000", "riskLevel": "High"}
	w := do(t, r, http.MethodPost, "/api/strategies?account="+carol, cand)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var added model.Strategy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &added))
	assert.Equal(t, model.AssetBitcoin, added.Asset)

	w = do(t, r, http.MethodGet, "/api/strategies/"+strings.ToLower(added.Address), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/strategies?sort=name_asc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Strategies []model.Strategy `json:"strategies"`
		Primary    string           `json:"primary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Strategies, 5)
	assert.Equal(t, "AlphaStaker ETH", list.Strategies[0].Name)
	assert.Equal(t, "Omega", list.Primary)

	w = do(t, r, http.MethodPost, "/api/strategies?account="+carol, map[string]any{"name": "", "tokenSymbol": "X", "apy": 1, "tvl": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusOf(errors.Mark(errors.New("reverted"), live.ErrCollaboratorFailure)))
	assert.Equal(t, http.StatusConflict, statusOf(session.ErrOperationInProgress))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("disk")))
}
