// Package order turns the agent's order intents into a cart the guest
// can see and edit, and talks to the restaurant order backend for
// persistence and payment initiation.
package order

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/robotwaiter/kiosk/pkg/agent"
)

// Line is one cart entry after decoding.
type Line struct {
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// orderKeyRe decodes the agent's composite "name(quantity)" keys.
var orderKeyRe = regexp.MustCompile(`^(.*?)\((\d+)\)$`)

// ParseOrderMap decodes an agent order map into cart lines. The unit
// price is the extended total divided by the quantity. Keys that do not
// match the pattern, carry a zero quantity, or price a line negative
// are dropped rather than rejected; the agent backend is not trusted to
// be well formed.
func ParseOrderMap(m agent.OrderMap) map[string]Line {
	lines := make(map[string]Line, len(m))
	for key, total := range m {
		match := orderKeyRe.FindStringSubmatch(strings.TrimSpace(key))
		if match == nil {
			continue
		}
		name := strings.TrimSpace(match[1])
		qty, err := strconv.Atoi(match[2])
		if err != nil || qty < 1 || name == "" || total < 0 {
			continue
		}
		lines[name] = Line{
			UnitPrice: total / float64(qty),
			Quantity:  qty,
		}
	}
	return lines
}

// Cart is the guest-visible order state. Agent-driven updates replace
// it wholesale; the touch controls mutate single lines. Safe for
// concurrent use: the conversation loop and the web handlers both
// touch it.
type Cart struct {
	mu    sync.RWMutex
	lines map[string]Line
}

// NewCart creates an empty cart.
func NewCart() *Cart {
	return &Cart{lines: make(map[string]Line)}
}

// Replace swaps the entire cart contents. Agent updates are
// authoritative, not additive.
func (c *Cart) Replace(lines map[string]Line) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string]Line, len(lines))
	for name, line := range lines {
		c.lines[name] = line
	}
}

// ApplyOrderMap decodes an order map and replaces the cart with it.
func (c *Cart) ApplyOrderMap(m agent.OrderMap) {
	c.Replace(ParseOrderMap(m))
}

// Increase adds one to an existing line. Unknown items are ignored.
func (c *Cart) Increase(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[name]
	if !ok {
		return
	}
	line.Quantity++
	c.lines[name] = line
}

// Decrease removes one from a line, deleting it when the quantity
// would drop below one.
func (c *Cart) Decrease(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, ok := c.lines[name]
	if !ok {
		return
	}
	if line.Quantity <= 1 {
		delete(c.lines, name)
		return
	}
	line.Quantity--
	c.lines[name] = line
}

// Delete removes a line entirely.
func (c *Cart) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, name)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = make(map[string]Line)
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lines)
}

// Get returns one line by name.
func (c *Cart) Get(name string) (Line, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	line, ok := c.lines[name]
	return line, ok
}

// Lines returns a copy of the cart contents.
func (c *Cart) Lines() map[string]Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Line, len(c.lines))
	for name, line := range c.lines {
		out[name] = line
	}
	return out
}

// Names returns the item names in stable order for display.
func (c *Cart) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.lines))
	for name := range c.lines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the extended total across all lines.
func (c *Cart) Total() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, line := range c.lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}

// ToOrderMap re-encodes the cart into the agent's composite-key wire
// format, used when the kiosk initiates payment from a manually edited
// cart.
func (c *Cart) ToOrderMap() agent.OrderMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(agent.OrderMap, len(c.lines))
	for name, line := range c.lines {
		key := name + "(" + strconv.Itoa(line.Quantity) + ")"
		m[key] = line.UnitPrice * float64(line.Quantity)
	}
	return m
}

// FormatItemName renders a wire item name for display: underscores
// become spaces and each word is capitalized.
func FormatItemName(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
