package handler

import (
	"strings"

	"sodminer-wallet/internal/adapter/http/dto"
	"sodminer-wallet/internal/adapter/http/middleware"
	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"
	"sodminer-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler serves the authenticated player's wallet endpoints.
type WalletHandler struct {
	ledger ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// currentUser returns the caller set by JWTAuth or writes a 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return userID, true
}

// bindJSON binds and sanitizes a request body, writing a 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// bindList binds paging and filter query parameters.
func bindList(c *gin.Context) (dto.ListQuery, bool) {
	var q dto.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return q, false
	}
	return q, true
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// UpdateAddress handles PUT /api/v1/wallet/address.
func (h *WalletHandler) UpdateAddress(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.AddressRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.ledger.UpdateWalletAddress(c.Request.Context(), userID, req.WalletAddress)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GetBalance handles GET /api/v1/wallet/balance?currency=usdt|sod|both.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sel, ok := domain.ParseBalanceSelector(c.Query("currency"))
	if !ok {
		response.Error(c, apperror.ErrInvalidCurrency())
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID, sel)
	if err != nil {
		response.Error(c, err)
		return
	}
	if balance == nil {
		response.Error(c, apperror.ErrWalletNotFound())
		return
	}
	response.OK(c, balance)
}

// GetStats handles GET /api/v1/wallet/stats.
func (h *WalletHandler) GetStats(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.ledger.GetWalletStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// GetSettings handles GET /api/v1/wallet/settings.
func (h *WalletHandler) GetSettings(c *gin.Context) {
	settings, err := h.ledger.GetWalletSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// Deposit handles POST /api/v1/wallet/deposits.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}
	currency, ok := domain.ParseCurrency(req.Currency, domain.CurrencyUSDT)
	if !ok {
		response.Error(c, apperror.ErrInvalidCurrency())
		return
	}

	result, err := h.ledger.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:         userID,
		Amount:         req.Amount,
		Currency:       currency,
		PaymentMethod:  req.PaymentMethod,
		TransactionRef: req.TransactionID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// RequestWithdrawal handles POST /api/v1/wallet/withdrawals.
func (h *WalletHandler) RequestWithdrawal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	currency, ok := domain.ParseCurrency(req.Currency, domain.CurrencyUSDT)
	if !ok {
		response.Error(c, apperror.ErrInvalidCurrency())
		return
	}

	result, err := h.ledger.RequestWithdrawal(c.Request.Context(), ports.WithdrawalInput{
		UserID:        userID,
		Amount:        req.Amount,
		Currency:      currency,
		WalletAddress: req.WalletAddress,
		Network:       strings.ToUpper(req.Network),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListWithdrawals handles GET /api/v1/wallet/withdrawals.
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	q, ok := bindList(c)
	if !ok {
		return
	}

	page := ports.Page{Limit: q.Limit, Offset: q.Offset}.Normalize()
	reqs, total, err := h.ledger.GetUserWithdrawalRequests(c.Request.Context(), userID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, reqs, total, page.Limit, page.Offset)
}

// GetWithdrawal handles GET /api/v1/wallet/withdrawals/:id.
func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal request id"))
		return
	}

	req, err := h.ledger.GetWithdrawalRequestStatus(c.Request.Context(), userID, requestID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, req)
}

// Transfer handles POST /api/v1/wallet/transfers.
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	currency, ok := domain.ParseCurrency(req.Currency, domain.CurrencySOD)
	if !ok {
		response.Error(c, apperror.ErrInvalidCurrency())
		return
	}

	result, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		SenderID:    userID,
		ReceiverID:  uuid.MustParse(req.ReceiverID),
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// PurchasePlan handles POST /api/v1/wallet/purchases.
func (h *WalletHandler) PurchasePlan(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.PurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledger.PurchasePlan(c.Request.Context(), ports.PlanPurchaseRequest{
		UserID:    userID,
		PlanID:    req.PlanID,
		PlanName:  req.PlanName,
		PlanPrice: req.PlanPrice,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	q, ok := bindList(c)
	if !ok {
		return
	}

	page := ports.Page{Limit: q.Limit, Offset: q.Offset}.Normalize()
	txns, total, err := h.ledger.GetWalletTransactions(c.Request.Context(), userID, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, txns, total, page.Limit, page.Offset)
}
