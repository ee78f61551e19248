package model

// PlanCode identifies one of the compiled-in plan tiers.
type PlanCode string

const (
	PlanFree        PlanCode = "free"
	PlanStarter     PlanCode = "starter"
	PlanProfesional PlanCode = "profesional"
	PlanBusiness    PlanCode = "business"
)

// BillingPeriod is the recurrence of a paid subscription.
type BillingPeriod string

const (
	BillingPeriodUnset   BillingPeriod = ""
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// Unlimited marks a numeric limit with no upper bound.
const Unlimited = -1

// PlanLimits holds the per-plan caps enforced by the entitlement engine.
// Numeric limits count existing rows; export flags are plain capabilities.
type PlanLimits struct {
	Quarries            int
	Users               int
	ProductionsPerMonth int
	SalesPerMonth       int
	Customers           int
	ExportPDF           bool
	ExportExcel         bool
}

// Plan is a purchasable tier. The catalog is compiled in rather than stored:
// prices double as the primary signal for resolving provider webhooks, so
// they must stay in lockstep with the provider checkout configuration.
type Plan struct {
	Code         PlanCode
	Name         string
	PriceMonthly float64
	PriceYearly  float64
	Limits       PlanLimits
	Features     []string
}

var catalog = []Plan{
	{
		Code:         PlanFree,
		Name:         "Gratis",
		PriceMonthly: 0,
		PriceYearly:  0,
		Limits: PlanLimits{
			Quarries:            1,
			Users:               2,
			ProductionsPerMonth: 10,
			SalesPerMonth:       10,
			Customers:           10,
		},
		Features: []string{
			"1 cantera",
			"2 usuarios",
			"10 producciones y ventas al mes",
		},
	},
	{
		Code:         PlanStarter,
		Name:         "Starter",
		PriceMonthly: 29,
		PriceYearly:  290,
		Limits: PlanLimits{
			Quarries:            1,
			Users:               5,
			ProductionsPerMonth: 50,
			SalesPerMonth:       50,
			Customers:           50,
			ExportPDF:           true,
		},
		Features: []string{
			"1 cantera",
			"5 usuarios",
			"50 producciones y ventas al mes",
			"Exportación PDF",
		},
	},
	{
		Code:         PlanProfesional,
		Name:         "Profesional",
		PriceMonthly: 79,
		PriceYearly:  790,
		Limits: PlanLimits{
			Quarries:            3,
			Users:               15,
			ProductionsPerMonth: 500,
			SalesPerMonth:       500,
			Customers:           500,
			ExportPDF:           true,
			ExportExcel:         true,
		},
		Features: []string{
			"3 canteras",
			"15 usuarios",
			"500 producciones y ventas al mes",
			"Exportación PDF y Excel",
		},
	},
	{
		Code:         PlanBusiness,
		Name:         "Empresarial",
		PriceMonthly: 199,
		PriceYearly:  1990,
		Limits: PlanLimits{
			Quarries:            Unlimited,
			Users:               Unlimited,
			ProductionsPerMonth: Unlimited,
			SalesPerMonth:       Unlimited,
			Customers:           Unlimited,
			ExportPDF:           true,
			ExportExcel:         true,
		},
		Features: []string{
			"Canteras ilimitadas",
			"Usuarios ilimitados",
			"Producciones y ventas ilimitadas",
			"Exportación PDF y Excel",
		},
	},
}

// productPlans maps provider product identifiers to plan tiers. The provider
// catalog exposes a single product per tier at best; historically it has
// exposed one product for all tiers, which is why price matching runs first.
var productPlans = map[string]PlanCode{
	"X103920698X": PlanProfesional,
}

// Plans returns the full catalog in ascending tier order.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// PlanByCode looks a plan up by its code.
func PlanByCode(code PlanCode) (Plan, bool) {
	for _, p := range catalog {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}

// DefaultPlan is the tier assumed when a tenant has no active subscription.
func DefaultPlan() Plan {
	p, _ := PlanByCode(PlanFree)
	return p
}
