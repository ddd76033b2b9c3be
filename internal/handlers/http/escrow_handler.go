package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/internal/core/services"
	"streampay/pkg/errors"
)

// EscrowHandler exposes transitions and queries. Transitions are signed by
// the identity in the bearer token; queries are public.
type EscrowHandler struct {
	escrow        ports.EscrowService
	authService   services.AuthService
	requireSigner gin.HandlerFunc
}

func NewEscrowHandler(escrow ports.EscrowService, authService services.AuthService, requireSigner gin.HandlerFunc) *EscrowHandler {
	return &EscrowHandler{
		escrow:        escrow,
		authService:   authService,
		requireSigner: requireSigner,
	}
}

func (h *EscrowHandler) SetupRoutes(rg *gin.RouterGroup) {
	rg.GET("/treasury", h.GetTreasury)
	rg.GET("/groups/:group_id", h.GetGroup)
	rg.GET("/streams/id/:group_id/:stream_id/:level", h.GetStream)
	rg.GET("/streams/name/:name/:level", h.GetStream)
	rg.GET("/addresses/id/:group_id/:stream_id/:level", h.DeriveAddresses)
	rg.GET("/addresses/name/:name/:level", h.DeriveAddresses)

	signed := rg.Group("", h.requireSigner)
	{
		signed.POST("/treasury/initialize", h.Initialize)
		signed.POST("/treasury/withdraw", h.WithdrawProgramFunds)
		signed.POST("/groups", h.CreatePaymentGroup)
		signed.POST("/streams/open", h.OpenNamedStream)
		signed.POST("/streams/pay", h.Pay)
		signed.POST("/streams/cancel", h.Cancel)
		signed.POST("/streams/withdraw", h.Withdraw)
	}
}

type createGroupRequest struct {
	GroupID  uint64 `json:"group_id"`
	Creator  string `json:"creator" binding:"required"`
	Rate     uint64 `json:"rate"`
	Discount bool   `json:"discount"`
}

type openStreamRequest struct {
	Name  string `json:"name" binding:"required"`
	Level int    `json:"level"`
}

type amountRequest struct {
	streamKeyRequest
	Amount uint64 `json:"amount"`
}

func (h *EscrowHandler) signer(c *gin.Context) (domain.Address, bool) {
	signer, err := h.authService.SignerFromContext(c.Request.Context())
	if err != nil {
		c.Error(errors.NewUnauthorizedError("signer required"))
		c.Abort()
		return domain.Address{}, false
	}
	return signer, true
}

func (h *EscrowHandler) Initialize(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}

	record, err := h.escrow.Initialize(c.Request.Context(), signer)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"owner": record.Owner.String()})
}

func (h *EscrowHandler) WithdrawProgramFunds(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}

	swept, err := h.escrow.WithdrawProgramFunds(c.Request.Context(), signer)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"value": swept})
}

func (h *EscrowHandler) CreatePaymentGroup(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	creator, err := parseAddress(req.Creator, "creator")
	if err != nil {
		abortWithError(c, err)
		return
	}

	group, err := h.escrow.CreatePaymentGroup(c.Request.Context(), signer, req.GroupID, creator, req.Rate, req.Discount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"group": newGroupResponse(group)})
}

func (h *EscrowHandler) OpenNamedStream(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}

	var req openStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	key, err := streamKeyRequest{Name: req.Name, Level: req.Level}.toKey()
	if err != nil {
		abortWithError(c, err)
		return
	}

	stream, err := h.escrow.OpenNamedStream(c.Request.Context(), signer, key.(domain.ByName))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stream": newStreamResponse(stream)})
}

// bindAmount decodes a stream key plus amount body.
func bindAmount(c *gin.Context) (domain.StreamKey, uint64, bool) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return nil, 0, false
	}
	key, err := req.toKey()
	if err != nil {
		abortWithError(c, err)
		return nil, 0, false
	}
	return key, req.Amount, true
}

func (h *EscrowHandler) Pay(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}
	key, amount, ok := bindAmount(c)
	if !ok {
		return
	}

	stream, err := h.escrow.Pay(c.Request.Context(), signer, key, amount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": newStreamResponse(stream)})
}

func (h *EscrowHandler) Cancel(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}
	key, amount, ok := bindAmount(c)
	if !ok {
		return
	}

	stream, err := h.escrow.Cancel(c.Request.Context(), signer, key, amount)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": newStreamResponse(stream)})
}

func (h *EscrowHandler) Withdraw(c *gin.Context) {
	signer, ok := h.signer(c)
	if !ok {
		return
	}
	var req streamKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	key, err := req.toKey()
	if err != nil {
		abortWithError(c, err)
		return
	}

	w, err := h.escrow.Withdraw(c.Request.Context(), signer, key)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": newStreamResponse(w.Stream),
		"value":  w.Value,
	})
}

func (h *EscrowHandler) GetTreasury(c *gin.Context) {
	view, err := h.escrow.GetTreasury(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, treasuryResponse{
		Address: view.Address.String(),
		Owner:   view.Owner.String(),
		Balance: view.Balance,
	})
}

func (h *EscrowHandler) GetGroup(c *gin.Context) {
	groupID, err := parseUint(c.Param("group_id"), "group_id")
	if err != nil {
		abortWithError(c, err)
		return
	}

	group, err := h.escrow.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": newGroupResponse(group)})
}

func (h *EscrowHandler) GetStream(c *gin.Context) {
	key, err := keyFromPath(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view, err := h.escrow.GetStream(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newStreamViewResponse(view))
}

func (h *EscrowHandler) DeriveAddresses(c *gin.Context) {
	key, err := keyFromPath(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	addrs, err := h.escrow.DeriveAddresses(key)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAddressesResponse(addrs))
}
