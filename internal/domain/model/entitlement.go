package model

import "cantera-billing/internal/domain"

// ActionKind enumerates the UI actions gated by plan limits.
type ActionKind string

const (
	ActionCreateQuarry       ActionKind = "create_quarry"
	ActionAddUser            ActionKind = "add_user"
	ActionRegisterProduction ActionKind = "register_production"
	ActionRegisterSale       ActionKind = "register_sale"
	ActionAddCustomer        ActionKind = "add_customer"
	ActionExportPDF          ActionKind = "export_pdf"
	ActionExportExcel        ActionKind = "export_excel"
)

// ParseActionKind validates an action string coming off the wire.
func ParseActionKind(s string) (ActionKind, error) {
	switch a := ActionKind(s); a {
	case ActionCreateQuarry, ActionAddUser, ActionRegisterProduction,
		ActionRegisterSale, ActionAddCustomer, ActionExportPDF, ActionExportExcel:
		return a, nil
	}
	return "", domain.ErrInvalidArgument
}

// EntitlementResult is what the UI renders: never an error, always a verdict.
type EntitlementResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// ActionUsage is one row of a tenant's usage summary.
type ActionUsage struct {
	Action    ActionKind `json:"action"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Unlimited bool       `json:"unlimited"`
}
