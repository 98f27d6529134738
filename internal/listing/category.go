package listing

import "strings"

// Category is a browse page backed by a whitelist of property type spellings.
type Category struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Types []string `json:"types"`
}

var categories = []Category{
	{
		Name:  "residential",
		Label: "Residential",
		Types: []string{"residential", "Residential", "apartment", "Apartment", "villa", "Villa", "house", "House"},
	},
	{
		Name:  "commercial",
		Label: "Commercial",
		Types: []string{"commercial", "Commercial", "office", "Office", "shop", "Shop"},
	},
	{
		Name:  "industrial",
		Label: "Industrial",
		Types: []string{"industrial", "Industrial", "warehouse", "Warehouse"},
	},
	{
		Name:  "farmland",
		Label: "Farmland",
		Types: []string{"farmland", "Farmland", "Agricultural", "agricultural"},
	},
	{
		Name:  "farmhouse",
		Label: "Farmhouse",
		Types: []string{"farmhouse", "Farmhouse"},
	},
	{
		Name:  "plot",
		Label: "Plots",
		Types: []string{"plot", "Plot", "land", "Land"},
	},
	{
		Name:  "rental",
		Label: "Rental",
		Types: []string{"rental", "Rental"},
	},
}

// Categories returns the category table
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		c.Types = append([]string(nil), c.Types...)
		out[i] = c
	}
	return out
}

// LookupCategory finds a category by name, case-insensitively
func LookupCategory(name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Contains reports whether propertyType is in the category whitelist
func (c Category) Contains(propertyType string) bool {
	for _, t := range c.Types {
		if t == propertyType {
			return true
		}
	}
	return false
}
