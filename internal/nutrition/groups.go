package nutrition

import "strings"

// Group is one of the six food categories tracked for every meal.
type Group string

const (
	Fruits     Group = "fruits"
	Vegetables Group = "vegetables"
	Grains     Group = "grains"
	Protein    Group = "protein"
	Dairy      Group = "dairy"
	Oils       Group = "oils"
)

// Groups returns all groups in canonical order.
func Groups() []Group {
	return []Group{Fruits, Vegetables, Grains, Protein, Dairy, Oils}
}

// Title returns the display form of the group name ("fruits" -> "Fruits").
func (g Group) Title() string {
	s := string(g)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Classification holds one meal's contribution toward each group's weekly
// recommended intake, expressed as fractions of the weekly target.
type Classification struct {
	Fruits     float64 `json:"fruits"`
	Vegetables float64 `json:"vegetables"`
	Grains     float64 `json:"grains"`
	Protein    float64 `json:"protein"`
	Dairy      float64 `json:"dairy"`
	Oils       float64 `json:"oils"`
}

// Value returns the fraction recorded for g.
func (c Classification) Value(g Group) float64 {
	switch g {
	case Fruits:
		return c.Fruits
	case Vegetables:
		return c.Vegetables
	case Grains:
		return c.Grains
	case Protein:
		return c.Protein
	case Dairy:
		return c.Dairy
	case Oils:
		return c.Oils
	}
	return 0
}

func (c *Classification) setValue(g Group, v float64) {
	switch g {
	case Fruits:
		c.Fruits = v
	case Vegetables:
		c.Vegetables = v
	case Grains:
		c.Grains = v
	case Protein:
		c.Protein = v
	case Dairy:
		c.Dairy = v
	case Oils:
		c.Oils = v
	}
}
