package handler

import (
	"strings"

	"sodminer-wallet/internal/adapter/http/dto"
	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"
	"sodminer-wallet/pkg/apperror"
	"sodminer-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves the operator endpoints. Routes are guarded by RequireRole.
type AdminHandler struct {
	ledger ports.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger ports.LedgerService) *AdminHandler {
	return &AdminHandler{ledger: ledger}
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals?status=&user_id=.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	q, ok := bindList(c)
	if !ok {
		return
	}

	params := ports.WithdrawalListParams{
		Page: ports.Page{Limit: q.Limit, Offset: q.Offset}.Normalize(),
	}
	if q.Status != "" {
		status := domain.WithdrawalStatus(q.Status)
		params.Status = &status
	}
	if q.UserID != "" {
		userID := uuid.MustParse(q.UserID)
		params.UserID = &userID
	}

	reqs, total, err := h.ledger.ListWithdrawalRequests(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, reqs, total, params.Page.Limit, params.Page.Offset)
}

// UpdateWithdrawalStatus handles PATCH /api/v1/admin/withdrawals/:id.
func (h *AdminHandler) UpdateWithdrawalStatus(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal request id"))
		return
	}

	var req dto.WithdrawalStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.ledger.UpdateWithdrawalStatus(c.Request.Context(), ports.WithdrawalStatusUpdate{
		RequestID:  requestID,
		Status:     domain.WithdrawalStatus(strings.ToLower(req.Status)),
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// UpdateSettings handles PUT /api/v1/admin/settings. The body is a flat
// object of setting keys to string values; omitted keys keep their value.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var values map[string]string
	if err := c.ShouldBindJSON(&values); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	settings, err := h.ledger.UpdateWalletSettings(c.Request.Context(), values)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}
