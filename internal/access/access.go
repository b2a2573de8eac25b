// Package access decides what a user may see. Every endpoint belongs
// to a route class, and every request resolves to an access tier; the
// pair determines allow, deny, or payment-required.
package access

import (
	"strings"
	"time"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// RouteClass groups endpoints by how much access they require.
type RouteClass int

const (
	// ClassOpen endpoints are reachable without any account: health,
	// pricing, registration, login.
	ClassOpen RouteClass = iota
	// ClassDemo endpoints are reachable by any authenticated user,
	// subject to the demo daily quota for non-premium users.
	ClassDemo
	// ClassPremium endpoints require an active subscription or an
	// exempt account.
	ClassPremium
)

// String returns a string representation of the route class.
func (c RouteClass) String() string {
	switch c {
	case ClassOpen:
		return "open"
	case ClassDemo:
		return "demo"
	case ClassPremium:
		return "premium"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an access check.
type Decision int

const (
	// Allow grants the request.
	Allow Decision = iota
	// DenyUnauthenticated means the request carries no valid identity.
	DenyUnauthenticated
	// DenyPaymentRequired means the identity is valid but the tier is
	// too low for the route class.
	DenyPaymentRequired
)

// Checker resolves tiers and evaluates route access. Exempt emails are
// matched case-insensitively against a fixed allowlist loaded at
// startup.
type Checker struct {
	exemptEmails map[string]struct{}
}

// NewChecker creates a checker with the given exempt email allowlist.
func NewChecker(exemptEmails []string) *Checker {
	exempt := make(map[string]struct{}, len(exemptEmails))
	for _, e := range exemptEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			exempt[e] = struct{}{}
		}
	}
	return &Checker{exemptEmails: exempt}
}

// IsExempt reports whether the email is on the allowlist.
func (c *Checker) IsExempt(email string) bool {
	_, ok := c.exemptEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// ResolveTier determines a user's effective tier. Exempt accounts
// always resolve to exempt regardless of subscription state; otherwise
// the subscription decides, falling back to demo for any registered
// user.
func (c *Checker) ResolveTier(user *models.User, sub *models.Subscription, now time.Time) types.AccessTier {
	if user == nil {
		return types.TierNone
	}
	if c.IsExempt(user.Email) {
		return types.TierExempt
	}
	if sub != nil && sub.GrantsPremium(now) {
		return types.TierPremium
	}
	return types.TierDemo
}

// Check evaluates a tier against a route class.
func Check(class RouteClass, tier types.AccessTier) Decision {
	switch class {
	case ClassOpen:
		return Allow
	case ClassDemo:
		if tier == types.TierNone {
			return DenyUnauthenticated
		}
		return Allow
	case ClassPremium:
		switch tier {
		case types.TierNone:
			return DenyUnauthenticated
		case types.TierExempt, types.TierPremium:
			return Allow
		default:
			return DenyPaymentRequired
		}
	default:
		return DenyUnauthenticated
	}
}

// Metered reports whether requests at this tier count against the
// daily demo quota. Premium and exempt users are never metered.
func Metered(tier types.AccessTier) bool {
	return tier == types.TierDemo
}
