package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streampay/internal/core/ports"
	"streampay/pkg/errors"
	"streampay/pkg/validation"
)

// AccountHandler serves raw ledger balances and, on dev ledgers, a faucet.
type AccountHandler struct {
	ledger          ports.Ledger
	faucetEnabled   bool
	faucetMaxAmount uint64
	logger          *zap.SugaredLogger
}

func NewAccountHandler(ledger ports.Ledger, faucetEnabled bool, faucetMaxAmount uint64, logger *zap.SugaredLogger) *AccountHandler {
	return &AccountHandler{
		ledger:          ledger,
		faucetEnabled:   faucetEnabled,
		faucetMaxAmount: faucetMaxAmount,
		logger:          logger,
	}
}

func (h *AccountHandler) SetupRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts/:address", h.GetAccount)
	if h.faucetEnabled {
		rg.POST("/faucet", h.Fund)
	}
}

type fundRequest struct {
	Address string `json:"address" binding:"required"`
	Amount  uint64 `json:"amount"`
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"), "address")
	if err != nil {
		abortWithError(c, err)
		return
	}

	acct, err := h.ledger.Account(c.Request.Context(), addr)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":   acct.Address.String(),
		"owner":     acct.Owner.String(),
		"balance":   acct.Balance,
		"data_size": len(acct.Data),
	})
}

func (h *AccountHandler) Fund(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := validation.ValidatePositiveAmount(req.Amount, "amount"); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}
	if req.Amount > h.faucetMaxAmount {
		c.Error(errors.NewInvalidInputError(fmt.Sprintf("amount exceeds faucet limit of %d", h.faucetMaxAmount)))
		return
	}

	if err := h.ledger.Fund(c.Request.Context(), addr, req.Amount); err != nil {
		abortWithError(c, err)
		return
	}
	h.logger.Infow("faucet funded account", "address", addr, "amount", req.Amount)

	acct, err := h.ledger.Account(c.Request.Context(), addr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address": addr.String(),
		"balance": acct.Balance,
	})
}
