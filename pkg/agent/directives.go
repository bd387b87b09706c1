package agent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultVoice is the voice used when the agent does not name one.
const DefaultVoice = "hi-IN-KavyaNeural"

// OrderMap is the agent's wire format for order intents: a composite
// "name(quantity)" key mapped to the extended total price for that
// line. pkg/order decodes it into a cart.
type OrderMap map[string]float64

// Customer identifies the guest when the agent has collected details.
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// PaymentData is the agent-issued payment request that accompanies a
// confirmed order. Amounts are in rupees; the payment gateway wants
// paise.
type PaymentData struct {
	Key         string  `json:"key"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	TableNumber string  `json:"table_number"`
	OrderID     string  `json:"order_id"`
	PaymentTime string  `json:"payment_time"`
	RobotCharge float64 `json:"robot_charge"`
	SubTotal    float64 `json:"sub_total"`
	GSTTotal    float64 `json:"gst_total"`
	GSTNumber   string  `json:"gst_number"`
	TotalAmount float64 `json:"total_amount"`
	BillHTML    string  `json:"bill_html"`
}

// Directives is the normalized control state extracted from one agent
// reply. Every field has a safe zero-ish default so a malformed control
// block degrades to "plain reply, keep talking".
type Directives struct {
	// Disconnect ends the conversation after the reply is spoken.
	Disconnect bool
	// Language is the voice to speak the reply with.
	Language string
	// IsOrder marks the reply as carrying an order intent.
	IsOrder bool
	// Order is the order intent payload, empty when IsOrder is false.
	Order OrderMap
	// ShowMenu asks the kiosk to display the menu screen.
	ShowMenu bool
	// Notes carries free-form kitchen notes.
	Notes string

	Customer     Customer
	SpecialNotes map[string]string
	DishMapping  map[string]string
	OrderInfo    map[string]any
	PaymentData  *PaymentData
}

// DefaultDirectives returns the directives used when a reply carries no
// control block or the block cannot be recovered.
func DefaultDirectives() Directives {
	return Directives{
		Language:     DefaultVoice,
		Order:        OrderMap{},
		SpecialNotes: map[string]string{},
		DishMapping:  map[string]string{},
		OrderInfo:    map[string]any{},
	}
}

// controlBlock mirrors the loose wire shape of the embedded block. The
// backend nests most fields under "control" but has been observed
// putting disconnect and show_menu at the top level too, and flips
// between strings and numbers for flags, so everything lands in
// RawMessage or any and is coerced afterwards.
type controlBlock struct {
	Control      *controlFields    `json:"control"`
	Disconnect   any               `json:"disconnect"`
	ShowMenu     any               `json:"show_menu"`
	Customer     *Customer         `json:"customer"`
	SpecialNotes map[string]string `json:"special_notes"`
	DishMapping  map[string]string `json:"dish_mapping"`
	PaymentData  json.RawMessage   `json:"payment_data"`
}

type controlFields struct {
	Disconnect  any                `json:"disconnect"`
	SessionID   string             `json:"session_id"`
	IsOrder     any                `json:"is_order"`
	Order       map[string]float64 `json:"order"`
	Language    string             `json:"language"`
	Notes       string             `json:"notes"`
	ShowMenu    any                `json:"show_menu"`
	OrderInfo   map[string]any     `json:"order_info"`
	DishMapping map[string]string  `json:"dish_mapping"`
}

// normalize converts a decoded block into Directives, applying defaults
// for everything absent.
func (b *controlBlock) normalize() Directives {
	d := DefaultDirectives()

	ctrl := b.Control
	if ctrl == nil {
		ctrl = &controlFields{}
	}

	d.Disconnect = looseFlag(ctrl.Disconnect) || (ctrl.Disconnect == nil && looseFlag(b.Disconnect))
	d.IsOrder = looseFlag(ctrl.IsOrder)
	if ctrl.Language != "" {
		d.Language = ctrl.Language
	}
	d.Notes = ctrl.Notes
	if ctrl.Order != nil {
		d.Order = OrderMap(ctrl.Order)
	}
	if ctrl.ShowMenu != nil {
		d.ShowMenu = looseFlag(ctrl.ShowMenu)
	} else {
		d.ShowMenu = looseFlag(b.ShowMenu)
	}
	if ctrl.OrderInfo != nil {
		d.OrderInfo = ctrl.OrderInfo
	}
	if ctrl.DishMapping != nil {
		d.DishMapping = ctrl.DishMapping
	} else if b.DishMapping != nil {
		d.DishMapping = b.DishMapping
	}
	if b.Customer != nil {
		d.Customer = *b.Customer
	}
	if b.SpecialNotes != nil {
		d.SpecialNotes = b.SpecialNotes
	}
	if len(b.PaymentData) > 0 && d.IsOrder {
		var pd PaymentData
		if err := json.Unmarshal(b.PaymentData, &pd); err == nil {
			if pd.Currency == "" {
				pd.Currency = "INR"
			}
			if pd.TotalAmount == 0 {
				pd.TotalAmount = pd.Amount
			}
			d.PaymentData = &pd
		}
	}
	return d
}

// sessionID returns the session id named inside the block, if any.
func (b *controlBlock) sessionID() string {
	if b.Control != nil {
		return b.Control.SessionID
	}
	return ""
}

// looseFlag coerces the backend's assorted truthy spellings: true, 1,
// "1", "true". Everything else, including absence, is false.
func looseFlag(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return false
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n != 0
		}
		return strings.EqualFold(s, "true")
	default:
		return false
	}
}
