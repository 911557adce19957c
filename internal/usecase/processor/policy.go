package processor

import (
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
)

// decidePolicy turns user preferences into scheduling for the job created
// from event. Missing preferences mean immediate delisting.
func decidePolicy(prefs *entity.UserDelistingPreferences, event *entity.SaleEvent, now time.Time, maxRetries int) entity.JobPolicy {
	policy := entity.JobPolicy{
		ScheduledFor: now,
		MaxRetries:   maxRetries,
	}

	if prefs == nil {
		return policy
	}

	policy.Excluded = prefs.ExcludedMarketplaces

	if !prefs.AutoDelistEnabled {
		policy.RequiresConfirmation = true
	}

	mode := prefs.DefaultPreference
	if override, ok := prefs.MarketplaceOverrides[event.Marketplace]; ok {
		mode = override
	}

	switch mode {
	case entity.PreferenceManualConfirmation:
		policy.RequiresConfirmation = true
	case entity.PreferenceDelayed:
		if prefs.DelayMinutes > 0 {
			policy.ScheduledFor = now.Add(time.Duration(prefs.DelayMinutes) * time.Minute)
		}
	}

	// продажи вне заданного диапазона суммы пользователь подтверждает вручную
	if prefs.MinSaleAmount != nil && event.SalePrice.LessThan(*prefs.MinSaleAmount) {
		policy.RequiresConfirmation = true
	}
	if prefs.MaxSaleAmount != nil && event.SalePrice.GreaterThan(*prefs.MaxSaleAmount) {
		policy.RequiresConfirmation = true
	}

	return policy
}
