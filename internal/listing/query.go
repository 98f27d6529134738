package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bigpartner/internal/domain"

	"gorm.io/gorm"
)

// Page is the list envelope shared by every collection endpoint
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// NewPage builds an envelope, never serializing a nil item slice
func NewPage[T any](items []T, total int64, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Total: total, Limit: limit, Offset: offset}
}

// Viewer identifies who is browsing. The zero value is an anonymous visitor.
type Viewer struct {
	UserID uint
	Admin  bool
}

var sortOrders = map[string][]string{
	SortNewest:    {"id DESC"},
	SortOldest:    {"id ASC"},
	SortPriceLow:  {"price ASC", "id ASC"},
	SortPriceHigh: {"price DESC", "id DESC"},
	SortAreaLow:   {"area ASC", "id ASC"},
	SortAreaHigh:  {"area DESC", "id DESC"},
	SortPopular:   {"view_count DESC", "id DESC"},
}

// Scope applies every filter of c, clamped to what v may see, without
// ordering or pagination.
func (c Criteria) Scope(db *gorm.DB, v Viewer) *gorm.DB {
	q := db.Model(&domain.Property{})

	owner := !v.Admin && v.UserID != 0 &&
		(c.Mine || (c.CreatedBy != nil && *c.CreatedBy == v.UserID))

	switch {
	case v.Admin:
		if c.Mine {
			q = q.Where("created_by = ?", v.UserID)
		} else if c.CreatedBy != nil {
			q = q.Where("created_by = ?", *c.CreatedBy)
		}
		q = c.moderationScope(q)
	case owner:
		q = q.Where("created_by = ?", v.UserID)
		q = c.moderationScope(q)
	default:
		if c.CreatedBy != nil {
			q = q.Where("created_by = ?", *c.CreatedBy)
		}
		q = q.Where("deleted = ? AND approval_status = ?", false, domain.ApprovalApproved)
	}

	if c.Search != "" {
		like := ContainsPattern(c.Search)
		q = q.Where(
			`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(city) LIKE ? ESCAPE '\' OR LOWER(locality) LIKE ? ESCAPE '\' `+
				`OR LOWER(address_line1) LIKE ? ESCAPE '\' OR LOWER(state) LIKE ? ESCAPE '\')`,
			like, like, like, like, like,
		)
	}
	if len(c.Types) > 0 {
		q = q.Where("LOWER(property_type) IN ?", lowerAll(c.Types))
	}
	if c.Category != nil {
		q = q.Where("property_type IN ?", c.Category.Types)
	}
	if len(c.Cities) > 0 {
		q = q.Where("LOWER(city) IN ?", lowerAll(c.Cities))
	}
	if c.State != "" {
		q = q.Where("LOWER(state) = ?", strings.ToLower(c.State))
	}
	if c.Status != "" {
		q = q.Where("status = ?", c.Status)
	}
	if c.ListingType != "" {
		q = q.Where("listing_type = ?", c.ListingType)
	}
	if c.MinPrice != nil {
		q = q.Where("price >= ?", *c.MinPrice)
	}
	if c.MaxPrice != nil {
		q = q.Where("price <= ?", *c.MaxPrice)
	}
	if c.MinArea != nil {
		q = q.Where("area >= ?", *c.MinArea)
	}
	if c.MaxArea != nil {
		q = q.Where("area <= ?", *c.MaxArea)
	}
	if c.MinBedrooms != nil {
		q = q.Where("bedrooms >= ?", *c.MinBedrooms)
	}
	if c.Featured != nil {
		q = q.Where("is_featured = ?", *c.Featured)
	}
	if c.Verified != nil {
		q = q.Where("is_verified = ?", *c.Verified)
	}
	if c.PartnerID != nil {
		q = q.Where("partner_id = ?", *c.PartnerID)
	}
	for _, a := range c.Amenities {
		q = amenityPredicate(q, a)
	}
	return q
}

// moderationScope applies deleted/approval filters for privileged viewers
func (c Criteria) moderationScope(q *gorm.DB) *gorm.DB {
	switch {
	case c.OnlyDeleted:
		q = q.Where("deleted = ?", true)
	case !c.IncludeDeleted:
		q = q.Where("deleted = ?", false)
	}

	switch c.ApprovalStatus {
	case ApprovalAll:
	case "":
		// the trash and the owner's dashboard show every approval state
		if !c.OnlyDeleted && !c.Mine {
			q = q.Where("approval_status = ?", domain.ApprovalApproved)
		}
	default:
		q = q.Where("approval_status = ?", c.ApprovalStatus)
	}
	return q
}

// amenityPredicate requires the JSON amenities array to contain name
func amenityPredicate(q *gorm.DB, name string) *gorm.DB {
	if q.Dialector.Name() == "postgres" {
		needle, _ := json.Marshal([]string{name})
		return q.Where("amenities::jsonb @> ?::jsonb", string(needle))
	}
	return q.Where("EXISTS (SELECT 1 FROM json_each(properties.amenities) WHERE json_each.value = ?)", name)
}

// Order applies the sort key with its id tie-breaker
func (c Criteria) Order(q *gorm.DB) *gorm.DB {
	order, ok := sortOrders[c.Sort]
	if !ok {
		order = sortOrders[SortNewest]
	}
	for _, o := range order {
		q = q.Order(o)
	}
	return q
}

// Find runs the query and returns one page plus the size of the filtered set
func Find(ctx context.Context, db *gorm.DB, c Criteria, v Viewer) (Page[domain.Property], error) {
	var total int64
	if err := c.Scope(db.WithContext(ctx), v).Count(&total).Error; err != nil {
		return Page[domain.Property]{}, fmt.Errorf("count properties: %w", err)
	}

	var items []domain.Property
	q := c.Order(c.Scope(db.WithContext(ctx), v))
	if err := q.Limit(c.Limit).Offset(c.Offset).Find(&items).Error; err != nil {
		return Page[domain.Property]{}, fmt.Errorf("list properties: %w", err)
	}

	return NewPage(items, total, c.Limit, c.Offset), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ContainsPattern returns a lower-cased LIKE pattern matching s literally
// anywhere in a value. Use it with ESCAPE '\'.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
