package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DelistPreference string

const (
	PreferenceImmediate          DelistPreference = "immediate"
	PreferenceDelayed            DelistPreference = "delayed"
	PreferenceManualConfirmation DelistPreference = "manual_confirmation"
)

type UserDelistingPreferences struct {
	UserID               uuid.UUID                        `json:"user_id"`
	AutoDelistEnabled    bool                             `json:"auto_delist_enabled"`
	DefaultPreference    DelistPreference                 `json:"default_preference"`
	DelayMinutes         int                              `json:"delay_minutes"`
	MarketplaceOverrides map[Marketplace]DelistPreference `json:"marketplace_overrides,omitempty"`
	ExcludedMarketplaces []Marketplace                    `json:"excluded_marketplaces,omitempty"`
	MinSaleAmount        *decimal.Decimal                 `json:"min_sale_amount,omitempty"`
	MaxSaleAmount        *decimal.Decimal                 `json:"max_sale_amount,omitempty"`
	UpdatedAt            time.Time                        `json:"updated_at"`
}

// JobPolicy is what the processor hands to job materialization.
type JobPolicy struct {
	RequiresConfirmation bool
	ScheduledFor         time.Time
	Excluded             []Marketplace
	MaxRetries           int
}
