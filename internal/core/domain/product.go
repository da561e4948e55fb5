package domain

import "time"

type Price struct {
	Formatted string  `json:"formatted"`
	Value     float64 `json:"value"`
}

type ProductRecord struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	ImageURL        *string `json:"imageUrl"`
	Price           Price   `json:"price"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"reviewCount"`
	IsPrimeEligible bool    `json:"isPrimeEligible"`
	IsSponsored     bool    `json:"isSponsored"`
}

// ExtractOptions bound a single extraction pass.
type ExtractOptions struct {
	MaxResults    int
	SkipSponsored bool
	Filters       FilterSet
}

// SearchResults is the last successful result set of a user.
type SearchResults struct {
	UserID         string          `json:"userId"`
	Query          string          `json:"query"`
	Products       []ProductRecord `json:"products"`
	AppliedFilters FilterSet       `json:"appliedFilters"`
	ResultPageURL  string          `json:"resultPageUrl"`
	CreatedAt      time.Time       `json:"createdAt"`
}
