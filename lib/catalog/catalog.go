// Package catalog holds the in-memory model for discovered coupon course
// listings and the filter/search/sort operations over them. Listings are
// produced once per scraping run and treated as immutable afterwards.
package catalog

// Listing is a single course+coupon pairing discovered on one source site.
// The canonical course URL is the deduplication key. Duration and Students
// stay free-text since sources emit anything from "5.5 hours" to a bare
// number; textutil normalizes them wherever a numeric value is needed.
type Listing struct {
	Title       string
	URL         string
	Source      string
	Rating      float64
	Duration    string
	Language    string
	Category    string
	Instructor  string
	Students    string
	Description string
}

// Statistics summarizes the filterable fields of a listing collection.
type Statistics struct {
	Total       int
	Languages   []string
	Categories  []string
	Instructors []string
	RatingMin   float64
	RatingMax   float64
	DurationMin float64
	DurationMax float64
}
