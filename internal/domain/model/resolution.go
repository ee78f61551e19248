package model

import (
	"math"
	"strings"
)

// priceTolerance absorbs provider-side tax and rounding adjustments when
// matching a paid amount against catalog prices.
const priceTolerance = 1.0

// PlanMatch is the outcome of resolving an ambiguous provider signal to a
// plan tier and billing period. Period may be unset when only the tier could
// be determined; the caller falls back to the event's declared recurrence.
type PlanMatch struct {
	Code   PlanCode
	Period BillingPeriod
}

// ResolvePlan maps a provider (product id, price, metadata) triple to a plan.
//
// Resolution order:
//  1. price against each tier's monthly and yearly catalog price, with a
//     small absolute tolerance. Price is the most reliable signal because
//     the provider catalog does not always distinguish tiers by product id.
//  2. exact product-id mapping.
//  3. keyword sniffing over the lowercased product id and metadata, as a
//     last resort for catalog misconfiguration. Plan and period substrings
//     match independently.
//
// ok is false when no tier could be determined; callers must treat that as
// a rejection rather than guess a tier.
func ResolvePlan(productID string, price *float64, metadata string) (match PlanMatch, ok bool) {
	if price != nil {
		for _, p := range catalog {
			if p.PriceMonthly <= 0 {
				continue // free tier never arrives via checkout
			}
			if math.Abs(*price-p.PriceMonthly) <= priceTolerance {
				return PlanMatch{Code: p.Code, Period: BillingPeriodMonthly}, true
			}
			if math.Abs(*price-p.PriceYearly) <= priceTolerance {
				return PlanMatch{Code: p.Code, Period: BillingPeriodYearly}, true
			}
		}
	}

	if code, found := productPlans[productID]; found {
		return PlanMatch{Code: code}, true
	}

	haystack := strings.ToLower(productID + " " + metadata)
	match.Period = sniffPeriod(haystack)
	switch {
	case strings.Contains(haystack, "starter"):
		match.Code = PlanStarter
	case strings.Contains(haystack, "profesional"), strings.Contains(haystack, "professional"):
		match.Code = PlanProfesional
	case strings.Contains(haystack, "business"), strings.Contains(haystack, "empresarial"):
		match.Code = PlanBusiness
	default:
		return PlanMatch{}, false
	}
	return match, true
}

func sniffPeriod(haystack string) BillingPeriod {
	switch {
	case strings.Contains(haystack, "yearly"), strings.Contains(haystack, "anual"):
		return BillingPeriodYearly
	case strings.Contains(haystack, "monthly"), strings.Contains(haystack, "mensual"):
		return BillingPeriodMonthly
	}
	return BillingPeriodUnset
}
