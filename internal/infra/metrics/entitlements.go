package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(entitlementChecksTotal)
}

var entitlementChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "entitlement_checks_total",
		Help: "Entitlement checks by action and verdict.",
	},
	[]string{"action", "allowed"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncEntitlementCheck(action string, allowed bool) {
	entitlementChecksTotal.WithLabelValues(norm(action), strconv.FormatBool(allowed)).Inc()
}
