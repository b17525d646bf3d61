package api

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/model"
	"YieldHarbor/internal/notifier"
	"YieldHarbor/internal/session"
	"YieldHarbor/internal/strategy"
)

type Handler struct {
	sessions *session.Manager
	catalog  *strategy.Catalog
	hub      *notifier.Hub
}

func NewHandler(sessions *session.Manager, catalog *strategy.Catalog, hub *notifier.Hub) *Handler {
	return &Handler{sessions: sessions, catalog: catalog, hub: hub}
}

type amountReq struct {
	Amount decimal.Decimal `json:"amount"`
}

type connectRes struct {
	Account string             `json:"account"`
	Mode    model.Mode         `json:"mode"`
	State   model.AccountState `json:"state"`
}

type strategiesRes struct {
	Strategies []model.Strategy        `json:"strategies"`
	AverageAPY float64                 `json:"average_apy"`
	Primary    string                  `json:"primary"`
	Allocation []model.AllocationSlice `json:"allocation"`
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/strategies?sort=apy_desc
func (h *Handler) ListStrategies(c *gin.Context) {
	list := h.catalog.List()
	if opt := c.Query("sort"); opt != "" {
		list = h.catalog.Sorted(strategy.SortOption(opt))
	}
	c.JSON(http.StatusOK, strategiesRes{
		Strategies: list,
		AverageAPY: h.catalog.AverageAPY(),
		Primary:    h.catalog.Primary().Name,
		Allocation: h.catalog.Allocation(),
	})
}

// GET /api/strategies/:address
func (h *Handler) GetStrategy(c *gin.Context) {
	s, ok := h.catalog.Lookup(c.Param("address"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// POST /api/strategies?account=0x...
// Adding requires a connected session in simulated mode.
func (h *Handler) AddStrategy(c *gin.Context) {
	var cand strategy.Candidate
	if err := c.ShouldBindJSON(&cand); err != nil {
		fail(c, errors.Mark(err, strategy.ErrInvalidStrategy))
		return
	}
	s, err := h.sessions.Get(c.Query("account"))
	if err != nil {
		fail(c, err)
		return
	}
	added, err := s.AddStrategy(c.Request.Context(), cand)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, added)
}

// POST /api/sessions/:id/connect
func (h *Handler) Connect(c *gin.Context) {
	s, st, err := h.sessions.Connect(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, connectRes{Account: s.Identity(), Mode: s.Mode(), State: st})
}

// POST /api/sessions/:id/disconnect
func (h *Handler) Disconnect(c *gin.Context) {
	if err := h.sessions.Disconnect(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/sessions/:id/mode/toggle
func (h *Handler) ToggleMode(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	mode, err := s.ToggleMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

// GET /api/sessions/:id/balance
func (h *Handler) Balance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	b, err := s.Balance(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/sessions/:id/deposit {"amount": "250"}
func (h *Handler) Deposit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := s.Deposit(c.Request.Context(), amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/sessions/:id/withdraw {"amount": "100"}
func (h *Handler) Withdraw(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	shares, ok := bindAmount(c)
	if !ok {
		return
	}
	res, err := s.Withdraw(c.Request.Context(), shares)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/sessions/:id/withdraw/preview?shares=100
func (h *Handler) PreviewWithdraw(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	shares, err := decimal.NewFromString(c.Query("shares"))
	if err != nil {
		fail(c, errors.Wrapf(fund.ErrInvalidAmount, "shares %q", c.Query("shares")))
		return
	}
	est, err := s.PreviewWithdraw(c.Request.Context(), shares)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": shares, "estimated": est})
}

// GET /api/sessions/:id/transactions?filter=deposits&limit=20
func (h *Handler) Transactions(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	filter := model.TxFilter(c.DefaultQuery("filter", string(model.FilterAll)))
	limit, _ := strconv.Atoi(c.Query("limit"))

	seq, err := s.Transactions(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	out := []model.Transaction{}
	for tx := range seq {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, tx)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

// GET /api/sessions/:id/performance
func (h *Handler) Performance(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	p, err := s.Performance(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/sessions/:id/ws
func (h *Handler) Stream(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, s.Identity()); err != nil {
		// the upgrader already wrote the response
		c.Abort()
	}
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return s, true
}

func bindAmount(c *gin.Context) (decimal.Decimal, bool) {
	var req amountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Wrap(fund.ErrInvalidAmount, err.Error()))
		return decimal.Zero, false
	}
	return req.Amount, true
}
