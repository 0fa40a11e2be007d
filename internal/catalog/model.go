package catalog

import (
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Product struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Description   *string             `json:"description,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	CategoryID    *uuid.UUID          `json:"categoryId,omitempty"`
	CategoryName  *string             `json:"categoryName,omitempty"`
	ImageURLs     []string            `json:"imageUrls"`
	Sizes         []string            `json:"sizes"`
	Colors        []string            `json:"colors"`
	Stock         int                 `json:"stock"`
	IsActive      bool                `json:"isActive"`
	IsFeatured    bool                `json:"isFeatured"`
	Rating        decimal.Decimal     `json:"rating"`
	ReviewCount   int                 `json:"reviewCount"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

type SortField string

const (
	SortByName      SortField = "name"
	SortByPrice     SortField = "price"
	SortByRating    SortField = "rating"
	SortByCreatedAt SortField = "createdAt"
)

var sortColumns = map[SortField]string{
	SortByName:      "p.name",
	SortByPrice:     "p.price",
	SortByRating:    "p.rating",
	SortByCreatedAt: "p.created_at",
}

type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string
	SortBy     SortField
	SortOrder  string
}

// Stars splits a 0.0-5.0 rating into whole stars and a half star.
func Stars(rating decimal.Decimal) (full int, half bool) {
	whole := rating.Floor()
	full = int(whole.IntPart())
	half = rating.Sub(whole).GreaterThanOrEqual(decimal.NewFromFloat(0.5))
	return full, half
}

var slugStrip = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns "Áo Thun Đen" into "ao-thun-den".
func Slugify(name string) string {
	folded, _, err := transform.String(slugStrip, strings.ToLower(name))
	if err != nil {
		folded = strings.ToLower(name)
	}
	folded = strings.ReplaceAll(folded, "đ", "d")

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
