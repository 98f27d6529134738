// Package listing implements the property browse query: facet parsing,
// visibility scoping, sorting and offset pagination, all pushed down into SQL.
package listing

import (
	"net/url"
	"strconv"
	"strings"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	apperrors "bigpartner/pkg/errors"
)

// Sort keys accepted by the listing endpoint
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortAreaLow   = "area-low"
	SortAreaHigh  = "area-high"
	SortPopular   = "popular"
)

// ApprovalAll disables the approval filter (admin only)
const ApprovalAll = "all"

var priceUnits = map[string]float64{
	"":      1,
	"inr":   1,
	"lakh":  1e5,
	"crore": 1e7,
}

// Criteria is a parsed listing request. Facets combine with AND; the values
// inside one facet combine with OR, except Amenities which must all match.
type Criteria struct {
	Search      string
	Types       []string
	Category    *Category
	Cities      []string
	State       string
	Status      string
	ListingType string

	// Price bounds are in rupees, already scaled by the request's priceUnit.
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64

	Amenities   []string
	MinBedrooms *int
	Featured    *bool
	Verified    *bool
	PartnerID   *uint
	CreatedBy   *uint

	// Mine restricts results to the caller's own properties (createdBy=me).
	Mine           bool
	IncludeDeleted bool
	OnlyDeleted    bool
	ApprovalStatus string

	Sort   string
	Limit  int
	Offset int
}

// Parse builds Criteria from query parameters. Malformed values are reported
// together, keyed by parameter name.
func Parse(q url.Values, limits config.ListingConfig) (Criteria, error) {
	p := parser{q: q, fields: map[string]string{}}
	c := Criteria{
		Search:      strings.TrimSpace(q.Get("search")),
		Types:       p.list("type"),
		Cities:      append(p.list("city"), p.list("location")...),
		State:       strings.TrimSpace(q.Get("state")),
		Status:      strings.TrimSpace(q.Get("status")),
		ListingType: strings.TrimSpace(q.Get("listingType")),
		Amenities:   p.list("amenities"),
		MinArea:     p.float("minArea"),
		MaxArea:     p.float("maxArea"),
		MinBedrooms: p.int("bedrooms"),
		Featured:    p.bool("featured"),
		Verified:    p.bool("verified"),
		PartnerID:   p.uint("partnerId"),
		Sort:        strings.TrimSpace(q.Get("sort")),
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("createdBy")), "me") {
		c.Mine = true
	} else {
		c.CreatedBy = p.uint("createdBy")
	}

	if name := q.Get("category"); name != "" {
		cat, ok := LookupCategory(name)
		if !ok {
			p.fields["category"] = "unknown category"
		} else {
			c.Category = &cat
		}
	}

	unit := strings.ToLower(strings.TrimSpace(q.Get("priceUnit")))
	scale, ok := priceUnits[unit]
	if !ok {
		p.fields["priceUnit"] = "must be one of inr, lakh, crore"
		scale = 1
	}
	if v := p.float("minPrice"); v != nil {
		scaled := *v * scale
		c.MinPrice = &scaled
	}
	if v := p.float("maxPrice"); v != nil {
		scaled := *v * scale
		c.MaxPrice = &scaled
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		p.fields["maxPrice"] = "must not be less than minPrice"
	}
	if c.MinArea != nil && c.MaxArea != nil && *c.MinArea > *c.MaxArea {
		p.fields["maxArea"] = "must not be less than minArea"
	}

	if v := p.bool("includeDeleted"); v != nil {
		c.IncludeDeleted = *v
	}

	switch s := strings.TrimSpace(q.Get("approvalStatus")); s {
	case "", domain.ApprovalApproved, domain.ApprovalPending, domain.ApprovalRejected, ApprovalAll:
		c.ApprovalStatus = s
	default:
		p.fields["approvalStatus"] = "must be one of pending, approved, rejected, all"
	}

	if c.Sort == "" {
		c.Sort = SortNewest
	}
	if _, ok := sortOrders[c.Sort]; !ok {
		p.fields["sort"] = "unknown sort key"
	}

	c.Limit = limits.DefaultLimit
	if v := p.int("limit"); v != nil {
		c.Limit = *v
	}
	if c.Limit < 1 {
		c.Limit = limits.DefaultLimit
	}
	if c.Limit > limits.MaxLimit {
		c.Limit = limits.MaxLimit
	}
	if v := p.int("offset"); v != nil && *v > 0 {
		c.Offset = *v
	} else if v := p.int("page"); v != nil && *v > 1 {
		c.Offset = (*v - 1) * c.Limit
	}

	if len(p.fields) > 0 {
		return Criteria{}, apperrors.Validation("invalid listing query", p.fields)
	}
	return c, nil
}

type parser struct {
	q      url.Values
	fields map[string]string
}

// list splits comma-separated and repeated parameters, dropping blanks
func (p parser) list(key string) []string {
	var out []string
	for _, raw := range p.q[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func (p parser) float(key string) *float64 {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		p.fields[key] = "must be a non-negative number"
		return nil
	}
	return &v
}

func (p parser) int(key string) *int {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		p.fields[key] = "must be a non-negative integer"
		return nil
	}
	return &v
}

func (p parser) uint(key string) *uint {
	v := p.int(key)
	if v == nil {
		return nil
	}
	u := uint(*v)
	return &u
}

func (p parser) bool(key string) *bool {
	raw := strings.TrimSpace(p.q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fields[key] = "must be true or false"
		return nil
	}
	return &v
}
