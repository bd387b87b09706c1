package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/robotwaiter/kiosk/internal/httpc"
	"github.com/robotwaiter/kiosk/pkg/agent"
)

// Client talks to the restaurant order backend: order persistence,
// payment initiation, and the payment-settled notification.
type Client struct {
	baseURL string
	phone   string
	client  *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.client = hc }
}

// WithContactPhone sets the phone number sent with payment requests.
func WithContactPhone(phone string) ClientOption {
	return func(c *Client) { c.phone = phone }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l.With("component", "order.client") }
}

// NewClient creates an order backend client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBackendURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpc.NewClient(httpc.DefaultTimeout),
		logger:  slog.Default().With("component", "order.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// saveItem is one line of the persisted order.
type saveItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Notes    string  `json:"notes"`
}

type saveCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// SaveOrder persists a confirmed order. An empty order map is a no-op,
// not an error; the agent sometimes confirms with nothing to save.
func (c *Client) SaveOrder(ctx context.Context, d agent.Directives, m agent.OrderMap) error {
	if len(m) == 0 {
		c.logger.Debug("skipping order save, nothing to persist")
		return nil
	}

	tableNumber := "PDR1"
	var serviceCharge, gstTotal, collectCash float64
	var totalAmount float64
	if d.PaymentData != nil {
		if d.PaymentData.TableNumber != "" {
			tableNumber = d.PaymentData.TableNumber
		}
		serviceCharge = d.PaymentData.RobotCharge
		gstTotal = d.PaymentData.GSTTotal
		collectCash = d.PaymentData.Amount
		if collectCash == 0 {
			collectCash = d.PaymentData.TotalAmount
		}
		totalAmount = d.PaymentData.TotalAmount
	}
	if totalAmount == 0 {
		for _, v := range m {
			totalAmount += v
		}
	}

	items := make([]saveItem, 0, len(m))
	for name, line := range ParseOrderMap(m) {
		items = append(items, saveItem{
			Name:     name,
			Quantity: line.Quantity,
			Price:    line.UnitPrice,
			Notes:    d.SpecialNotes[name],
		})
	}

	customer := saveCustomer{Name: d.Customer.Name, Phone: d.Customer.Phone, Email: d.Customer.Email}
	if customer.Name == "" {
		customer.Name = "Guest"
	}

	now := time.Now()
	payload := map[string]any{
		"table_number": tableNumber,
		"dish_mapping": d.DishMapping,
		"customer":     customer,
		"items":        items,
		"total_amount": totalAmount,
		"discount":     d.OrderInfo["discount_total"],
		"tax":          d.OrderInfo["tax_total"],
		"order_info": map[string]any{
			"preorder_date":  now.Format("2006-01-02"),
			"preorder_time":  now.Format("15:04:05"),
			"service_charge": serviceCharge,
			"order_type":     orDefault(d.OrderInfo["order_type"], "D"),
			"payment_type":   orDefault(d.OrderInfo["payment_type"], "UPI"),
			"total":          totalAmount,
			"table_no":       tableNumber,
			"discount_total": d.OrderInfo["discount_total"],
			"tax_total":      gstTotal,
			"collect_cash":   collectCash,
		},
	}

	if err := c.post(ctx, "/chatbot/save_order/", payload, nil); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	c.logger.Info("order saved", "table", tableNumber, "items", len(items), "total", totalAmount)
	return nil
}

// PaymentSession is the backend's answer to a payment initiation: the
// gateway checkout parameters plus the bill breakdown. Amount is in
// paise.
type PaymentSession struct {
	Key          string  `json:"key"`
	Amount       int64   `json:"amount"`
	Currency     string  `json:"currency"`
	TableNumber  string  `json:"table_number"`
	OrderID      string  `json:"order_id"`
	PaymentTime  string  `json:"payment_time"`
	RobotCharge  float64 `json:"robot_charge"`
	SubTotal     float64 `json:"sub_total"`
	GSTTotal     float64 `json:"gst_total"`
	GSTNumber    string  `json:"gst_number"`
	TotalAmount  float64 `json:"total_amount"`
	OrderRowsRaw string  `json:"order_rows_html"`
	UPIString    string  `json:"upi_string"`
}

// StartPayment opens a payment with the backend. The amount is the
// directive's authoritative total when present, otherwise the order
// map's sum, converted to paise for the gateway.
func (c *Client) StartPayment(ctx context.Context, d agent.Directives, m agent.OrderMap) (*PaymentSession, error) {
	tableNumber := "PDR1"
	var total float64
	if d.PaymentData != nil {
		if d.PaymentData.TableNumber != "" {
			tableNumber = d.PaymentData.TableNumber
		}
		total = d.PaymentData.TotalAmount
	}
	if total == 0 {
		for _, v := range m {
			total += v
		}
	}
	if total <= 0 {
		return nil, ErrNothingToPay
	}

	payload := map[string]any{
		"amount":        int64(math.Round(total * 100)),
		"currency":      "INR",
		"mobile_no":     c.phone,
		"order_summary": m,
		"table_number":  tableNumber,
	}

	var session PaymentSession
	if err := c.post(ctx, "/chatbot/start_payment", payload, &session); err != nil {
		return nil, fmt.Errorf("start payment: %w", err)
	}
	if session.Currency == "" {
		session.Currency = "INR"
	}

	c.logger.Info("payment started",
		"order_id", session.OrderID,
		"table", session.TableNumber,
		"amount_paise", session.Amount,
	)
	return &session, nil
}

// GatewayResponse is the checkout postback the payment gateway returns
// on success.
type GatewayResponse struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

// PaymentSuccess notifies the backend that the gateway settled the
// payment, attaching the rendered bill for the printed receipt.
func (c *Client) PaymentSuccess(ctx context.Context, resp GatewayResponse, billHTML string) error {
	payload := map[string]any{
		"payment_response": resp,
		"bill_html":        billHTML,
	}
	if err := c.post(ctx, "/chatbot/payment_success/", payload, nil); err != nil {
		return fmt.Errorf("payment success: %w", err)
	}
	c.logger.Info("payment settlement reported", "payment_id", resp.PaymentID)
	return nil
}

// Menu fetches the menu for the normalization matcher.
func (c *Client) Menu(ctx context.Context) ([]Dish, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chatbot/menu", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{StatusCode: resp.StatusCode, Endpoint: "/chatbot/menu"}
	}

	var body struct {
		Dishes []Dish `json:"dishes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode menu: %w", err)
	}
	return body.Dishes, nil
}

// post sends a JSON payload and optionally decodes a JSON response.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &BackendError{
			StatusCode: resp.StatusCode,
			Endpoint:   path,
			Message:    strings.TrimSpace(string(msg)),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func orDefault(v any, def string) any {
	if v == nil || v == "" {
		return def
	}
	return v
}
