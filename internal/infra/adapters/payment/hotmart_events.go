package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

// ErrMalformedPayload marks a body that could not be parsed at all.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// EventKind classifies the provider event types this system models.
// Everything else is EventUnrecognized and acknowledged without side effects
// so the provider's retry machinery stops redelivering it.
type EventKind string

const (
	EventPurchaseApproved        EventKind = "purchase_approved"
	EventPurchaseRevoked         EventKind = "purchase_revoked"
	EventSubscriptionCancelled   EventKind = "subscription_cancelled"
	EventSubscriptionReactivated EventKind = "subscription_reactivated"
	EventUnrecognized            EventKind = "unrecognized"
)

// Event is the normalized form of a provider webhook delivery. The fallback
// chains over the provider's loosely shaped payloads live entirely in the
// parser; consumers only see these flat fields.
type Event struct {
	Kind           EventKind
	ID             string
	Type           string
	TransactionID  string
	ProductID      string
	BuyerEmail     string
	SubscriptionID string
	Price          *float64
	Recurrence     string
	Metadata       string
	Raw            map[string]interface{}
}

type rawPrice struct {
	Value *float64 `json:"value"`
}

type rawEvent struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Type  string `json:"type"`
	Data  struct {
		Transaction    string      `json:"transaction"`
		ProductID      interface{} `json:"product_id"`
		Price          rawPrice    `json:"price"`
		Recurrence     string      `json:"recurrence"`
		SubscriptionID interface{} `json:"subscription_id"`
		Buyer          struct {
			Email string `json:"email"`
		} `json:"buyer"`
		Product struct {
			ID   interface{} `json:"id"`
			Name string      `json:"name"`
		} `json:"product"`
		Purchase struct {
			Transaction string   `json:"transaction"`
			Price       rawPrice `json:"price"`
			Offer       struct {
				Code string `json:"code"`
			} `json:"offer"`
		} `json:"purchase"`
		Subscription struct {
			ID             interface{} `json:"id"`
			SubscriberCode string      `json:"subscriber_code"`
			Plan           struct {
				Name string `json:"name"`
			} `json:"plan"`
		} `json:"subscription"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body, JSON or form-urlencoded, into an Event.
// The content type is sniffed from the first non-space byte since the
// provider has been observed sending both encodings under either header.
func ParseEvent(body []byte) (*Event, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSON(body)
	}
	return parseForm(body)
}

func parseJSON(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrMalformedPayload
	}
	var generic map[string]interface{}
	_ = json.Unmarshal(body, &generic)

	eventType := raw.Event
	if eventType == "" {
		eventType = raw.Type
	}
	if eventType == "" {
		return nil, ErrMalformedPayload
	}

	ev := &Event{
		ID:   raw.ID,
		Type: eventType,
		Kind: classify(eventType),
		Raw:  generic,
	}

	ev.TransactionID = firstNonEmpty(raw.Data.Transaction, raw.Data.Purchase.Transaction)
	ev.ProductID = firstNonEmpty(stringify(raw.Data.ProductID), stringify(raw.Data.Product.ID))
	ev.BuyerEmail = raw.Data.Buyer.Email
	ev.SubscriptionID = firstNonEmpty(
		stringify(raw.Data.Subscription.ID),
		raw.Data.Subscription.SubscriberCode,
		stringify(raw.Data.SubscriptionID),
	)
	if raw.Data.Price.Value != nil {
		ev.Price = raw.Data.Price.Value
	} else if raw.Data.Purchase.Price.Value != nil {
		ev.Price = raw.Data.Purchase.Price.Value
	}
	ev.Recurrence = raw.Data.Recurrence
	ev.Metadata = strings.TrimSpace(strings.Join([]string{
		raw.Data.Product.Name,
		raw.Data.Subscription.Plan.Name,
		raw.Data.Purchase.Offer.Code,
	}, " "))
	return ev, nil
}

func parseForm(body []byte) (*Event, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, ErrMalformedPayload
	}
	eventType := firstNonEmpty(values.Get("event"), values.Get("type"))
	if eventType == "" {
		return nil, ErrMalformedPayload
	}

	raw := make(map[string]interface{}, len(values))
	for k := range values {
		raw[k] = values.Get(k)
	}

	ev := &Event{
		ID:             values.Get("id"),
		Type:           eventType,
		Kind:           classify(eventType),
		TransactionID:  values.Get("transaction"),
		ProductID:      values.Get("product_id"),
		BuyerEmail:     firstNonEmpty(values.Get("email"), values.Get("buyer_email")),
		SubscriptionID: firstNonEmpty(values.Get("subscription_id"), values.Get("subscriber_code")),
		Recurrence:     values.Get("recurrence"),
		Metadata:       values.Get("product_name"),
		Raw:            raw,
	}
	if s := values.Get("price"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			ev.Price = &f
		}
	}
	return ev, nil
}

func classify(eventType string) EventKind {
	switch strings.ToUpper(eventType) {
	case "PURCHASE_APPROVED", "PURCHASE_COMPLETE", "PURCHASE_COMPLETED":
		return EventPurchaseApproved
	case "PURCHASE_CANCELED", "PURCHASE_CANCELLED", "PURCHASE_REFUNDED", "PURCHASE_CHARGEBACK":
		return EventPurchaseRevoked
	case "SUBSCRIPTION_CANCELLATION", "SUBSCRIPTION_CANCELLED":
		return EventSubscriptionCancelled
	case "SUBSCRIPTION_REACTIVATION", "SUBSCRIPTION_REACTIVATED":
		return EventSubscriptionReactivated
	}
	return EventUnrecognized
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// stringify normalizes identifiers that arrive as either strings or numbers.
func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}
