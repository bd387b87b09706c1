package order

import (
	"testing"

	"github.com/robotwaiter/kiosk/pkg/agent"
)

func TestParseOrderMap(t *testing.T) {
	t.Run("decodes composite keys", func(t *testing.T) {
		lines := ParseOrderMap(agent.OrderMap{"Paneer Tikka(2)": 400})

		line, ok := lines["Paneer Tikka"]
		if !ok {
			t.Fatal("Paneer Tikka missing from parsed lines")
		}
		if line.UnitPrice != 200 || line.Quantity != 2 {
			t.Errorf("expected unit 200 qty 2, got %+v", line)
		}
	})

	t.Run("drops malformed keys", func(t *testing.T) {
		lines := ParseOrderMap(agent.OrderMap{
			"Samosa(2)":   60,
			"no quantity": 100,
			"Dal(0)":      50,
			"Naan(-1)":    40,
			"(3)":         30,
			"Negative(2)": -10,
			"Chai(two)":   20,
		})

		if _, ok := lines["Samosa"]; !ok {
			t.Error("well-formed key was dropped")
		}
		if len(lines) != 1 {
			t.Errorf("expected 1 surviving line, got %d: %v", len(lines), lines)
		}
	})

	t.Run("empty map yields empty lines", func(t *testing.T) {
		if lines := ParseOrderMap(agent.OrderMap{}); len(lines) != 0 {
			t.Errorf("expected empty result, got %v", lines)
		}
	})
}

func TestCartMutations(t *testing.T) {
	newCart := func() *Cart {
		c := NewCart()
		c.ApplyOrderMap(agent.OrderMap{"Samosa(2)": 60, "Chai(1)": 25})
		return c
	}

	t.Run("apply replaces wholesale", func(t *testing.T) {
		c := newCart()
		c.ApplyOrderMap(agent.OrderMap{"Dosa(1)": 120})

		if c.Len() != 1 {
			t.Errorf("old lines survived replacement: %v", c.Lines())
		}
		if _, ok := c.Get("Dosa"); !ok {
			t.Error("new line missing after replacement")
		}
	})

	t.Run("increase and decrease", func(t *testing.T) {
		c := newCart()
		c.Increase("Samosa")
		if line, _ := c.Get("Samosa"); line.Quantity != 3 {
			t.Errorf("expected qty 3, got %d", line.Quantity)
		}

		c.Decrease("Samosa")
		c.Decrease("Samosa")
		if line, _ := c.Get("Samosa"); line.Quantity != 1 {
			t.Errorf("expected qty 1, got %d", line.Quantity)
		}

		// Dropping below one removes the line.
		c.Decrease("Samosa")
		if _, ok := c.Get("Samosa"); ok {
			t.Error("line survived decrement to zero")
		}
	})

	t.Run("mutating unknown items is a no-op", func(t *testing.T) {
		c := newCart()
		c.Increase("Pizza")
		c.Decrease("Pizza")
		c.Delete("Pizza")
		if c.Len() != 2 {
			t.Errorf("unknown-item mutation changed the cart: %v", c.Lines())
		}
	})

	t.Run("total", func(t *testing.T) {
		c := newCart()
		if got := c.Total(); got != 85 {
			t.Errorf("expected total 85, got %v", got)
		}
	})

	t.Run("round trip to order map", func(t *testing.T) {
		c := newCart()
		m := c.ToOrderMap()
		if m["Samosa(2)"] != 60 || m["Chai(1)"] != 25 {
			t.Errorf("unexpected order map: %v", m)
		}
	})
}

func TestFormatItemName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"paneer_tikka", "Paneer Tikka"},
		{"masala dosa", "Masala Dosa"},
		{"Chai", "Chai"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatItemName(tt.in); got != tt.want {
			t.Errorf("FormatItemName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
