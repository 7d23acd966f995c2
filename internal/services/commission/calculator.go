// Package commission computes the platform's cut of a booking and the
// amount left for the hotel.
package commission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Mode selects how Rate is interpreted.
type Mode string

const (
	ModeExact      Mode = "exact"
	ModePercentage Mode = "percentage"
)

// DefaultRate is used when no rate is configured.
var DefaultRate = decimal.NewFromInt(2)

var (
	ErrInvalidMode = errors.New("invalid commission mode")
	ErrInvalidRate = errors.New("invalid commission rate")

	hundred = decimal.NewFromInt(100)
)

// Config is the commission rule for one settlement run.
// Rate is 0..100 for ModePercentage and a major-unit amount for ModeExact.
type Config struct {
	Mode Mode
	Rate decimal.Decimal
}

// Split is the result of dividing a base amount.
type Split struct {
	Base       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// ParseMode accepts "exact" or "percentage" in any case.
// An empty value yields ModePercentage.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePercentage:
		return ModePercentage, nil
	case ModeExact:
		return ModeExact, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Validate checks the rate against the mode.
func (c Config) Validate() error {
	switch c.Mode {
	case ModePercentage:
		if c.Rate.IsNegative() || c.Rate.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage must be between 0 and 100, got %s", ErrInvalidRate, c.Rate)
		}
	case ModeExact:
		if c.Rate.IsNegative() {
			return fmt.Errorf("%w: exact amount must not be negative, got %s", ErrInvalidRate, c.Rate)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	return nil
}

func (c Config) String() string {
	if c.Mode == ModePercentage {
		return c.Rate.String() + "%"
	}
	return c.Rate.String() + " flat"
}

// Amount returns the platform's commission on base, rounded to cents.
// It is never negative and never exceeds base.
func Amount(base decimal.Decimal, cfg Config) decimal.Decimal {
	return Calculate(base, cfg).Commission
}

// Net returns base minus the commission.
func Net(base decimal.Decimal, cfg Config) decimal.Decimal {
	return Calculate(base, cfg).Net
}

// Calculate splits base between the platform and the counterparty.
// Commission and Net always add up to the rounded base.
func Calculate(base decimal.Decimal, cfg Config) Split {
	base = base.Round(2)
	if !base.IsPositive() {
		return Split{Base: decimal.Zero, Commission: decimal.Zero, Net: decimal.Zero}
	}

	var cut decimal.Decimal
	switch cfg.Mode {
	case ModePercentage:
		cut = base.Mul(cfg.Rate).Div(hundred)
	case ModeExact:
		cut = cfg.Rate
	}
	cut = clamp(cut.Round(2), base)

	return Split{Base: base, Commission: cut, Net: base.Sub(cut)}
}

func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}
