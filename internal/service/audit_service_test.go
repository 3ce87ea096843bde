package service

import (
	"context"
	"testing"
	"time"

	"sodminer-wallet/internal/adapter/storage/memory"
	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, zerolog.Nop())

	userID := uuid.New()
	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionWithdrawal, log.Action)
			assert.Equal(t, userID, *log.UserID)
			close(done)
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionWithdrawal,
		ResourceType: "withdrawal_request",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_MemoryStore(t *testing.T) {
	repo := memory.NewAuditRepo(memory.NewStore())
	svc := NewAuditService(repo, zerolog.Nop())

	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionUpdateSettings,
		ResourceType: "wallet_settings",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now(),
	})

	require.Eventually(t, func() bool { return len(repo.Entries()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.AuditActionUpdateSettings, repo.Entries()[0].Action)
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		ID:           uuid.New(),
		Action:       domain.AuditActionTransfer,
		ResourceType: "wallet_transaction",
		IPAddress:    "127.0.0.1",
		CreatedAt:    time.Now(),
	})

	time.Sleep(50 * time.Millisecond) // let goroutine run
}
