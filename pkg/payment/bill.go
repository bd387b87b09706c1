package payment

import (
	"html/template"
	"strings"

	"github.com/robotwaiter/kiosk/pkg/order"
)

// billTemplate renders the guest-facing receipt shown on the tablet
// after checkout opens. Styling mirrors the kiosk's dark theme.
var billTemplate = template.Must(template.New("bill").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8" />
    <style>
      body { margin: 0; font-family: 'Arial', sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; background: #000; }
      .bill { border-radius: 12px; padding: 20px; box-shadow: 0 0 10px rgba(0, 234, 255, 0.5); max-width: 700px; width: 100%; margin: auto; border: 1px solid #00eaff; }
      h2 { text-align: center; font-size: 28px; margin-bottom: 10px; font-weight: bold; color: #00eaff; text-shadow: 0 0 8px rgba(0, 234, 255, 0.7); }
      p { margin: 6px 0; font-size: 16px; font-weight: 600; color: #fff; }
      table { width: 100%; border-collapse: collapse; margin-top: 16px; }
      th, td { padding: 10px; text-align: left; font-size: 16px; border-bottom: 1px solid rgba(0, 234, 255, 0.3); color: #fff; }
      th { background: #2c2c2e; font-weight: bold; color: #00eaff; }
      .total-row td { font-size: 18px; font-weight: bold; color: #00eaff; }
    </style>
  </head>
  <body>
    <div class="bill">
      <h2>{{.RestaurantName}}</h2>
      <p><strong>GST No:</strong> {{.GSTNumber}}</p>
      <p><strong>Table No:</strong> {{.TableNumber}}</p>
      <p><strong>Payment Time:</strong> {{.PaymentTime}}</p>
      <table>
        <thead>
          <tr><th>Item</th><th>Price</th></tr>
        </thead>
        <tbody>
          {{range .Rows}}<tr><td>{{.Name}}</td><td>&#8377;{{printf "%.2f" .Price}}</td></tr>
          {{end}}<tr><td>Robot Charges</td><td>&#8377;{{printf "%.2f" .RobotCharge}}</td></tr>
        </tbody>
        <tfoot>
          <tr><td>Subtotal</td><td>&#8377;{{printf "%.2f" .SubTotal}}</td></tr>
          <tr><td>GST (5%)</td><td>&#8377;{{printf "%.2f" .GSTTotal}}</td></tr>
          <tr class="total-row"><td>Total</td><td>&#8377;{{printf "%.2f" .TotalAmount}}</td></tr>
        </tfoot>
      </table>
    </div>
  </body>
</html>
`))

// DefaultRestaurantName labels receipts when no name is configured.
const DefaultRestaurantName = "The Robot Restaurant"

type billRow struct {
	Name  string
	Price float64
}

type billContext struct {
	RestaurantName string
	GSTNumber      string
	TableNumber    string
	PaymentTime    string
	RobotCharge    float64
	SubTotal       float64
	GSTTotal       float64
	TotalAmount    float64
	Rows           []billRow
}

// RenderBill produces the receipt HTML for a checkout over the given
// cart lines.
func RenderBill(restaurantName string, data Data, lines map[string]order.Line) (string, error) {
	if restaurantName == "" {
		restaurantName = DefaultRestaurantName
	}

	cart := order.NewCart()
	cart.Replace(lines)
	rows := make([]billRow, 0, len(lines))
	for _, name := range cart.Names() {
		line := lines[name]
		rows = append(rows, billRow{
			Name:  order.FormatItemName(name),
			Price: line.UnitPrice * float64(line.Quantity),
		})
	}

	var b strings.Builder
	err := billTemplate.Execute(&b, billContext{
		RestaurantName: restaurantName,
		GSTNumber:      data.GSTNumber,
		TableNumber:    data.TableNumber,
		PaymentTime:    data.PaymentTime,
		RobotCharge:    data.RobotCharge,
		SubTotal:       data.SubTotal,
		GSTTotal:       data.GSTTotal,
		TotalAmount:    data.TotalAmount,
		Rows:           rows,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
