package entity

import (
	"fmt"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
)

type Marketplace string

const (
	Ebay     Marketplace = "ebay"
	Poshmark Marketplace = "poshmark"
	Facebook Marketplace = "facebook"
)

func (m Marketplace) Valid() bool {
	switch m {
	case Ebay, Poshmark, Facebook:
		return true
	}
	return false
}

func ParseMarketplace(s string) (Marketplace, error) {
	m := Marketplace(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", errs.ErrUnknownMarketplace, s)
	}
	return m, nil
}

func MarketplacesToStrings(ms []Marketplace) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, string(m))
	}
	return out
}

func MarketplacesFromStrings(ss []string) []Marketplace {
	out := make([]Marketplace, 0, len(ss))
	for _, s := range ss {
		out = append(out, Marketplace(s))
	}
	return out
}
