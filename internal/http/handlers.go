package http

import (
	"math/big"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/relieftoken/drt-client/internal/apperr"
	"github.com/relieftoken/drt-client/internal/constants"
	"github.com/relieftoken/drt-client/internal/contracts"
	"github.com/relieftoken/drt-client/internal/history"
	"github.com/relieftoken/drt-client/internal/session"
	"github.com/relieftoken/drt-client/internal/txflow"
	"github.com/relieftoken/drt-client/internal/units"
)

type Handler struct {
	session  *session.Manager
	mediator *txflow.Mediator
	history  *history.Querier
}

func NewHandler(s *session.Manager, m *txflow.Mediator, h *history.Querier) *Handler {
	return &Handler{
		session:  s,
		mediator: m,
		history:  h,
	}
}

// -------- DTOs for local client API --------

type addressReq struct {
	Address string `json:"address" binding:"required"`
}

type vendorReq struct {
	Address  string `json:"address"  binding:"required"`
	Category string `json:"category" binding:"required"`
}

type amountReq struct {
	To     string `json:"to"     binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type tokenRes struct {
	contracts.Metadata
	TotalSupplyFormatted string `json:"totalSupplyFormatted"`
	Network              string `json:"network"`
}

type balanceRes struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Raw     string `json:"raw"`
}

type transfersRes struct {
	Network   string           `json:"network"`
	Transfers []history.Record `json:"transfers"`
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/session
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// POST /api/session/connect
func (h *Handler) Connect(c *gin.Context) {
	if err := h.session.Connect(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// POST /api/session/disconnect
func (h *Handler) Disconnect(c *gin.Context) {
	h.session.Disconnect()
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// GET /api/roles/:address
func (h *Handler) Roles(c *gin.Context) {
	roles, err := h.session.Roles(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// POST /api/roles/refresh
func (h *Handler) RefreshRoles(c *gin.Context) {
	roles, err := h.session.RefreshRoles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// GET /api/token
func (h *Handler) Token(c *gin.Context) {
	ctx := c.Request.Context()
	reader, err := h.session.Reader(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	meta, err := reader.Token.Metadata(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	res := tokenRes{Metadata: meta, Network: reader.Network.NetworkName}
	if supply, ok := parseBig(meta.TotalSupply); ok {
		res.TotalSupplyFormatted = units.FormatUnitsTrim(supply, meta.Decimals, 4)
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/balances/:address
func (h *Handler) Balance(c *gin.Context) {
	address := c.Param("address")
	balance, err := h.session.Balance(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceRes{
		Address: address,
		Balance: units.FormatUnits(balance, constants.TokenDecimals),
		Raw:     balance.String(),
	})
}

// GET /api/transfers
func (h *Handler) Transfers(c *gin.Context) {
	ctx := c.Request.Context()
	reader, err := h.session.Reader(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := h.history.Query(ctx, reader.Token, reader.Network.DeployBlock)
	if err != nil {
		writeError(c, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, transfersRes{Network: reader.Network.NetworkName, Transfers: records})
}

// POST /api/admin/beneficiaries
func (h *Handler) AddBeneficiary(c *gin.Context) {
	var req addressReq
	if !bindJSON(c, &req) {
		return
	}
	h.accepted(c)(h.mediator.AddBeneficiary(c.Request.Context(), req.Address))
}

// POST /api/admin/vendors
func (h *Handler) AddVendor(c *gin.Context) {
	var req vendorReq
	if !bindJSON(c, &req) {
		return
	}
	category, err := contracts.ParseCategory(req.Category)
	if err != nil {
		writeError(c, apperr.Validation("%s %q", HTTPErrorUnknownCategoryText, req.Category))
		return
	}
	h.accepted(c)(h.mediator.AddVendor(c.Request.Context(), req.Address, category))
}

// POST /api/admin/mint
func (h *Handler) Mint(c *gin.Context) {
	var req amountReq
	if !bindJSON(c, &req) {
		return
	}
	h.accepted(c)(h.mediator.Mint(c.Request.Context(), req.To, req.Amount))
}

// POST /api/transfers
func (h *Handler) Transfer(c *gin.Context) {
	var req amountReq
	if !bindJSON(c, &req) {
		return
	}
	h.accepted(c)(h.mediator.Transfer(c.Request.Context(), req.To, req.Amount))
}

// GET /api/transactions/:id
func (h *Handler) Transaction(c *gin.Context) {
	view, err := h.mediator.Lookup(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// accepted answers a write with its ticket as soon as it was submitted.
func (h *Handler) accepted(c *gin.Context) func(*txflow.Ticket, error) {
	return func(t *txflow.Ticket, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, t.View())
	}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, apperr.Validation("invalid request: %s", errors.UnwrapAll(err).Error()))
		return false
	}
	return true
}

func parseBig(s string) (*big.Int, bool) {
	return new(big.Int).SetString(s, 10)
}
