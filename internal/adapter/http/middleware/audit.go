package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// Actions are resolved from the matched route template.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/wallet/deposits" && method == http.MethodPost:
		return domain.AuditActionDeposit, "wallet_transaction"
	case route == "/api/v1/wallet/withdrawals" && method == http.MethodPost:
		return domain.AuditActionWithdrawal, "withdrawal_request"
	case route == "/api/v1/wallet/transfers" && method == http.MethodPost:
		return domain.AuditActionTransfer, "wallet_transaction"
	case route == "/api/v1/wallet/purchases" && method == http.MethodPost:
		return domain.AuditActionPlanPurchase, "wallet_transaction"
	case route == "/api/v1/wallet/address" && method == http.MethodPut:
		return domain.AuditActionUpdateAddress, "wallet"
	case route == "/api/v1/admin/withdrawals/:id" && method == http.MethodPatch:
		return domain.AuditActionWithdrawalStatus, "withdrawal_request"
	case route == "/api/v1/admin/settings" && method == http.MethodPut:
		return domain.AuditActionUpdateSettings, "wallet_settings"
	}
	return "", ""
}
