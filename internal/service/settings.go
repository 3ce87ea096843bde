package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sodminer-wallet/internal/core/domain"
	"sodminer-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoadSettings reads the settings table over the configured defaults and
// replaces the cached copy. Unknown keys in the table are ignored.
func (s *LedgerServiceImpl) LoadSettings(ctx context.Context) error {
	rows, err := s.settingsRepo.GetAll(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("load settings: %w", err))
	}

	known := make(map[string]string, len(rows))
	for _, key := range domain.SettingKeys {
		if v, ok := rows[key]; ok {
			known[key] = v
		}
	}
	for key := range rows {
		if _, ok := known[key]; !ok {
			s.log.Warn().Str("key", key).Msg("ignoring unknown wallet setting")
		}
	}

	merged, err := s.defaults.Merge(known)
	if err != nil {
		return apperror.ErrInvalidSettings(err.Error())
	}
	if err := merged.Validate(); err != nil {
		return apperror.ErrInvalidSettings(err.Error())
	}

	s.mu.Lock()
	s.settings = &merged
	s.mu.Unlock()

	s.log.Info().
		Str("usdt_cap", merged.USDTCap.String()).
		Str("fee_percent", merged.WithdrawalFeePercent.String()).
		Msg("wallet settings loaded")
	return nil
}

// currentSettings returns the cached settings, loading them on first use.
func (s *LedgerServiceImpl) currentSettings(ctx context.Context) (domain.WalletSettings, error) {
	s.mu.RLock()
	cached := s.settings
	s.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	if err := s.LoadSettings(ctx); err != nil {
		return domain.WalletSettings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.settings, nil
}

// GetWalletSettings returns the cached settings.
func (s *LedgerServiceImpl) GetWalletSettings(ctx context.Context) (domain.WalletSettings, error) {
	return s.currentSettings(ctx)
}

// UpdateWalletSettings merges values into the current settings, persists
// the changed keys and refreshes the cache. Nothing changes on failure.
func (s *LedgerServiceImpl) UpdateWalletSettings(ctx context.Context, values map[string]string) (updated domain.WalletSettings, err error) {
	defer s.observe(opSettings, time.Now(), &err)

	if len(values) == 0 {
		return domain.WalletSettings{}, apperror.ErrInvalidSettings("no settings provided")
	}

	current, err := s.currentSettings(ctx)
	if err != nil {
		return domain.WalletSettings{}, err
	}

	merged, err := current.Merge(values)
	if err != nil {
		return domain.WalletSettings{}, apperror.ErrInvalidSettings(err.Error())
	}
	if err := merged.Validate(); err != nil {
		return domain.WalletSettings{}, apperror.ErrInvalidSettings(err.Error())
	}

	// Persist the normalized form of only the keys the caller sent.
	normalized := merged.Values()
	rows := make(map[string]string, len(values))
	keys := make([]string, 0, len(values))
	for key := range values {
		rows[key] = normalized[key]
		keys = append(keys, key)
	}
	sort.Strings(keys)

	if err := s.settingsRepo.Upsert(ctx, rows); err != nil {
		return domain.WalletSettings{}, apperror.InternalError(fmt.Errorf("persist settings: %w", err))
	}

	s.mu.Lock()
	s.settings = &merged
	s.mu.Unlock()

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx); err != nil {
			s.log.Warn().Err(err).Msg("failed to announce settings update")
		}
	}
	s.publish(ctx, domain.NewLedgerEvent(domain.EventSettingsUpdated, uuid.Nil, decimal.Zero, "", ""))

	s.log.Info().Strs("keys", keys).Msg("wallet settings updated")
	return merged, nil
}
