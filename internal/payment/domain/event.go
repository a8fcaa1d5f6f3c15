package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Known gateway event kinds. Anything else is dispatched as a no-op.
const (
	EventSubscriptionCreate   = "subscription.create"
	EventChargeSuccess        = "charge.success"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventSubscriptionDisable  = "subscription.disable"
	EventSubscriptionEnable   = "subscription.enable"
)

// Envelope is the outer shape of every gateway webhook.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseEnvelope decodes a raw webhook body into the envelope and its typed
// event data. A malformed body returns ErrInvalidPayload.
func ParseEnvelope(raw []byte) (Envelope, *EventData, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, nil, ErrInvalidPayload
	}

	data := &EventData{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, data); err != nil {
			return Envelope{}, nil, ErrInvalidPayload
		}
	}
	return envelope, data, nil
}

// PlanRef accepts the gateway's plan field in either shape: a bare plan
// code string or an object carrying plan_code/code/slug.
type PlanRef struct {
	Code string
}

func (p *PlanRef) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		p.Code = ""
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			p.Code = ""
			return nil
		}
		p.Code = code
		return nil
	}

	var obj struct {
		PlanCode string `json:"plan_code"`
		Code     string `json:"code"`
		Slug     string `json:"slug"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		p.Code = ""
		return nil
	}
	switch {
	case obj.PlanCode != "":
		p.Code = obj.PlanCode
	case obj.Code != "":
		p.Code = obj.Code
	default:
		p.Code = obj.Slug
	}
	return nil
}

// Metadata accepts either a JSON object or the object re-encoded as a JSON
// string, which the gateway emits on some event kinds. Anything else decodes
// to an empty map.
type Metadata map[string]any

func (m *Metadata) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		*m = nil
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			*m = nil
			return nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			*m = nil
			return nil
		}
		*m = decoded
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		*m = nil
		return nil
	}
	*m = decoded
	return nil
}

// UserID extracts the checkout-supplied user id, tolerating numeric and
// string encodings.
func (m Metadata) UserID() (int64, bool) {
	value, ok := m["user_id"]
	if !ok || value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case float64:
		return int64(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func (m Metadata) stringValue(key string) string {
	value, ok := m[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func (m Metadata) TierKey() string { return m.stringValue("tier_key") }

func (m Metadata) Frequency() string { return m.stringValue("frequency") }

func (m Metadata) PlanCode() string { return m.stringValue("plan_code") }

// FlexInt tolerates numeric fields arriving as JSON numbers or strings.
type FlexInt struct {
	Value int64
	Set   bool
}

func (f *FlexInt) UnmarshalJSON(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		f.Set = false
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			f.Set = false
			return nil
		}
		trimmed = strings.TrimSpace(text)
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		f.Set = false
		return nil
	}
	f.Value = parsed
	f.Set = true
	return nil
}

// CustomerRef is the gateway's customer object.
type CustomerRef struct {
	CustomerCode string `json:"customer_code"`
	Code         string `json:"code"`
	Email        string `json:"email"`
}

// CardRef is the gateway's authorization object.
type CardRef struct {
	CardType string `json:"card_type"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	Last_4   string `json:"last_4"`
}

func (c *CardRef) CardBrand() string {
	if c == nil {
		return ""
	}
	if c.CardType != "" {
		return c.CardType
	}
	return c.Brand
}

func (c *CardRef) CardLast4() string {
	if c == nil {
		return ""
	}
	if c.Last4 != "" {
		return c.Last4
	}
	return c.Last_4
}

// SubscriptionRef is the nested subscription object some events carry.
type SubscriptionRef struct {
	SubscriptionCode string       `json:"subscription_code"`
	Code             string       `json:"code"`
	Plan             PlanRef      `json:"plan"`
	Customer         *CustomerRef `json:"customer"`
	Authorization    *CardRef     `json:"authorization"`
	NextPaymentDate  string       `json:"next_payment_date"`
	Status           string       `json:"status"`
	Metadata         Metadata     `json:"metadata"`
}

// EventData is the typed union of the fields any known event kind may
// carry. Optional nested objects replace ad hoc map lookups.
type EventData struct {
	Reference        string           `json:"reference"`
	Amount           FlexInt          `json:"amount"`
	Status           string           `json:"status"`
	SubscriptionCode string           `json:"subscription_code"`
	NextPaymentDate  string           `json:"next_payment_date"`
	Plan             PlanRef          `json:"plan"`
	Metadata         Metadata         `json:"metadata"`
	Customer         *CustomerRef     `json:"customer"`
	Authorization    *CardRef         `json:"authorization"`
	Subscription     *SubscriptionRef `json:"subscription"`
}

// ResolveSubscriptionCode returns the subscription code from the top level
// or the nested subscription object.
func (d *EventData) ResolveSubscriptionCode() string {
	if d == nil {
		return ""
	}
	if d.SubscriptionCode != "" {
		return d.SubscriptionCode
	}
	if d.Subscription != nil {
		if d.Subscription.SubscriptionCode != "" {
			return d.Subscription.SubscriptionCode
		}
		return d.Subscription.Code
	}
	return ""
}

// ResolvePlanCode returns the plan code from the top-level plan, the nested
// subscription's plan, or the metadata fallback.
func (d *EventData) ResolvePlanCode() string {
	if d == nil {
		return ""
	}
	if d.Plan.Code != "" {
		return d.Plan.Code
	}
	if d.Subscription != nil && d.Subscription.Plan.Code != "" {
		return d.Subscription.Plan.Code
	}
	return d.ResolveMetadata().PlanCode()
}

// ResolveMetadata prefers top-level metadata, then the nested
// subscription's metadata.
func (d *EventData) ResolveMetadata() Metadata {
	if d == nil {
		return nil
	}
	if len(d.Metadata) > 0 {
		return d.Metadata
	}
	if d.Subscription != nil {
		return d.Subscription.Metadata
	}
	return nil
}

// ResolveCustomer returns (customer_code, email) from the top-level or
// nested customer object.
func (d *EventData) ResolveCustomer() (string, string) {
	if d == nil {
		return "", ""
	}
	customer := d.Customer
	if customer == nil && d.Subscription != nil {
		customer = d.Subscription.Customer
	}
	if customer == nil {
		return "", ""
	}
	code := customer.CustomerCode
	if code == "" {
		code = customer.Code
	}
	return code, customer.Email
}

// ResolveCard returns (brand, last4) from the top-level or nested
// authorization object.
func (d *EventData) ResolveCard() (string, string) {
	if d == nil {
		return "", ""
	}
	card := d.Authorization
	if card == nil && d.Subscription != nil {
		card = d.Subscription.Authorization
	}
	return card.CardBrand(), card.CardLast4()
}

// ResolveNextPaymentDate parses the next payment timestamp from the
// top-level or nested field; unparseable values yield nil.
func (d *EventData) ResolveNextPaymentDate() *time.Time {
	if d == nil {
		return nil
	}
	raw := d.NextPaymentDate
	if raw == "" && d.Subscription != nil {
		raw = d.Subscription.NextPaymentDate
	}
	return parseGatewayTime(raw)
}

// ResolveStatus lowercases the reported status; unrecognized values fall
// back to active. See the design notes for why this ambiguity is kept.
func (d *EventData) ResolveStatus() SubscriptionStatus {
	raw := ""
	if d != nil {
		raw = d.Status
		if raw == "" && d.Subscription != nil {
			raw = d.Subscription.Status
		}
	}
	status := SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !KnownStatus(status) {
		return SubscriptionStatusActive
	}
	return status
}

// IsSubscriptionCharge reports whether a charge belongs to a subscription,
// by the presence of a subscription or plan reference.
func (d *EventData) IsSubscriptionCharge() bool {
	return d.ResolveSubscriptionCode() != "" || d.ResolvePlanCode() != ""
}

func parseGatewayTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}
