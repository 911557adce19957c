package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/postgres"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	// Table
	preferencesTable = "user_delisting_preferences"

	// Columns
	autoDelistEnabledColumn    = "auto_delist_enabled"
	defaultPreferenceColumn    = "default_preference"
	delayMinutesColumn         = "delay_minutes"
	marketplaceOverridesColumn = "marketplace_overrides"
	excludedMarketplacesColumn = "excluded_marketplaces"
	minSaleAmountColumn        = "min_sale_amount"
	maxSaleAmountColumn        = "max_sale_amount"
)

type PreferencesRepo struct {
	*postgres.Postgres
}

func NewPreferencesRepo(pg *postgres.Postgres) *PreferencesRepo {
	return &PreferencesRepo{pg}
}

func (r *PreferencesRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.UserDelistingPreferences, error) {
	sql, args, err := r.Builder.
		Select(
			userIDColumn,
			autoDelistEnabledColumn,
			defaultPreferenceColumn,
			delayMinutesColumn,
			marketplaceOverridesColumn,
			excludedMarketplacesColumn,
			minSaleAmountColumn,
			maxSaleAmountColumn,
			updatedAtColumn,
		).
		From(preferencesTable).
		Where(squirrel.Eq{userIDColumn: userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("PreferencesRepo - GetByUserID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var (
		prefs     entity.UserDelistingPreferences
		overrides []byte
		excluded  []string
		minAmount decimal.NullDecimal
		maxAmount decimal.NullDecimal
	)

	err = executor.QueryRow(ctx, sql, args...).Scan(
		&prefs.UserID,
		&prefs.AutoDelistEnabled,
		&prefs.DefaultPreference,
		&prefs.DelayMinutes,
		&overrides,
		&excluded,
		&minAmount,
		&maxAmount,
		&prefs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("PreferencesRepo - GetByUserID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("PreferencesRepo - GetByUserID - executor.QueryRow: %w", err)
	}

	if len(overrides) > 0 {
		if err = json.Unmarshal(overrides, &prefs.MarketplaceOverrides); err != nil {
			return nil, fmt.Errorf("PreferencesRepo - GetByUserID - json.Unmarshal: %w", err)
		}
	}
	prefs.ExcludedMarketplaces = entity.MarketplacesFromStrings(excluded)
	if minAmount.Valid {
		prefs.MinSaleAmount = &minAmount.Decimal
	}
	if maxAmount.Valid {
		prefs.MaxSaleAmount = &maxAmount.Decimal
	}

	return &prefs, nil
}
