package order

import (
	"context"
	"strings"
)

// Match is a resolved menu item: the canonical display name (with the
// variation folded into a suffix when one applies) and the unit price
// the menu says it costs.
type Match struct {
	Name      string
	UnitPrice float64
}

// Matcher resolves a raw item name from the agent into a canonical
// menu entry. A nil result with a nil error means no match; the caller
// keeps the raw parse.
type Matcher interface {
	Match(ctx context.Context, name string) (*Match, error)
}

// Dish is one menu entry with its size or preparation variations.
type Dish struct {
	Name       string      `json:"name"`
	Price      float64     `json:"price"`
	Variations []Variation `json:"variations"`
}

// Variation is a size or preparation of a dish with its own price.
type Variation struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MenuService matches against an in-memory menu, typically loaded from
// the order backend at startup. Matching is case- and
// underscore-insensitive; a raw name that mentions a variation resolves
// to "Dish (Variation)" with the variation's price.
type MenuService struct {
	dishes []Dish
}

// NewMenuService creates a matcher over the given menu.
func NewMenuService(dishes []Dish) *MenuService {
	return &MenuService{dishes: dishes}
}

// Match resolves a raw name. Resolution order: a variation named in
// the raw text wins over the base dish; an unknown name returns
// (nil, nil) so the raw parse stands.
func (s *MenuService) Match(ctx context.Context, name string) (*Match, error) {
	needle := canonical(name)
	if needle == "" {
		return nil, nil
	}

	for _, dish := range s.dishes {
		dishKey := canonical(dish.Name)
		if !strings.Contains(needle, dishKey) && dishKey != needle {
			continue
		}
		for _, v := range dish.Variations {
			if strings.Contains(needle, canonical(v.Name)) {
				return &Match{
					Name:      dish.Name + " (" + v.Name + ")",
					UnitPrice: v.Price,
				}, nil
			}
		}
		return &Match{Name: dish.Name, UnitPrice: dish.Price}, nil
	}
	return nil, nil
}

func canonical(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
}

// Normalize rewrites cart lines through the matcher. Matched lines get
// the canonical name and the menu's unit price; lines the matcher
// cannot place, or that fail with an error, keep their raw form. The
// quantity always survives untouched.
func Normalize(ctx context.Context, m Matcher, lines map[string]Line) map[string]Line {
	if m == nil {
		return lines
	}
	out := make(map[string]Line, len(lines))
	for name, line := range lines {
		match, err := m.Match(ctx, name)
		if err != nil || match == nil {
			out[name] = line
			continue
		}
		out[match.Name] = Line{UnitPrice: match.UnitPrice, Quantity: line.Quantity}
	}
	return out
}

// Verify MenuService implements Matcher at compile time.
var _ Matcher = (*MenuService)(nil)
