package catalog

import (
	"fmt"
	"sort"
	"strings"

	"coursepilot-backend/lib/textutil"
)

// Options configures Filter. The zero value matches everything, so filtering
// with empty Options returns the input unchanged. Include lists pass when any
// term matches; exclude lists reject when any term matches; criteria combine
// with logical AND.
type Options struct {
	MinRating          float64  `json:"min_rating"`
	MaxDurationHours   float64  `json:"max_duration_hours"`
	Language           string   `json:"language"`
	IncludeKeywords    []string `json:"include_keywords"`
	ExcludeKeywords    []string `json:"exclude_keywords"`
	MinStudents        int      `json:"min_students"`
	MaxStudents        int      `json:"max_students"`
	IncludeCategories  []string `json:"include_categories"`
	ExcludeCategories  []string `json:"exclude_categories"`
	IncludeInstructors []string `json:"include_instructors"`
	ExcludeInstructors []string `json:"exclude_instructors"`
	CaseSensitive      bool     `json:"case_sensitive"`
}

func Filter(listings []Listing, opts Options) []Listing {
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if !passesRating(l, opts.MinRating) {
			continue
		}
		if !passesDuration(l, opts.MaxDurationHours) {
			continue
		}
		if !passesLanguage(l, opts.Language, opts.CaseSensitive) {
			continue
		}
		text := textutil.Fold(l.Title+" "+l.Description, opts.CaseSensitive)
		if !passesTerms(text, opts.IncludeKeywords, opts.ExcludeKeywords, opts.CaseSensitive) {
			continue
		}
		if !passesStudents(l, opts.MinStudents, opts.MaxStudents) {
			continue
		}
		category := textutil.Fold(l.Category, opts.CaseSensitive)
		if !passesTerms(category, opts.IncludeCategories, opts.ExcludeCategories, opts.CaseSensitive) {
			continue
		}
		instructor := textutil.Fold(l.Instructor, opts.CaseSensitive)
		if !passesTerms(instructor, opts.IncludeInstructors, opts.ExcludeInstructors, opts.CaseSensitive) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func passesRating(l Listing, minRating float64) bool {
	if minRating <= 0 {
		return true
	}
	return l.Rating >= minRating
}

func passesDuration(l Listing, maxHours float64) bool {
	if maxHours <= 0 {
		return true
	}
	return textutil.ParseDuration(l.Duration, 0) <= maxHours
}

func passesLanguage(l Listing, language string, caseSensitive bool) bool {
	if language == "" {
		return true
	}
	return strings.Contains(
		textutil.Fold(l.Language, caseSensitive),
		textutil.Fold(language, caseSensitive),
	)
}

func passesStudents(l Listing, min, max int) bool {
	if min <= 0 && max <= 0 {
		return true
	}
	students := textutil.ParseStudents(l.Students, 0)
	if min > 0 && students < min {
		return false
	}
	if max > 0 && students > max {
		return false
	}
	return true
}

// passesTerms checks folded text against include and exclude term lists.
// text must already be folded; terms are folded here.
func passesTerms(text string, include, exclude []string, caseSensitive bool) bool {
	if len(include) > 0 {
		hit := false
		for _, term := range include {
			if strings.Contains(text, textutil.Fold(term, caseSensitive)) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, term := range exclude {
		if strings.Contains(text, textutil.Fold(term, caseSensitive)) {
			return false
		}
	}
	return true
}

// Search returns the listings for which every whitespace-separated term of
// query is a substring of the combined title, description, instructor and
// category text.
func Search(listings []Listing, query string, caseSensitive bool) []Listing {
	if strings.TrimSpace(query) == "" {
		return listings
	}
	terms := strings.Fields(textutil.Fold(query, caseSensitive))

	var results []Listing
	for _, l := range listings {
		haystack := textutil.Fold(
			fmt.Sprintf("%s %s %s %s", l.Title, l.Description, l.Instructor, l.Category),
			caseSensitive,
		)
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if matched {
			results = append(results, l)
		}
	}
	return results
}

// Sort returns a stably sorted copy. Known keys: rating, duration, students,
// title. An unknown key compares everything equal, which keeps the input
// order.
func Sort(listings []Listing, key string, descending bool) []Listing {
	out := make([]Listing, len(listings))
	copy(out, listings)

	numeric := func(l Listing) float64 {
		switch key {
		case "rating":
			return l.Rating
		case "duration":
			return textutil.ParseDuration(l.Duration, 0)
		case "students":
			return float64(textutil.ParseStudents(l.Students, 0))
		default:
			return 0
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		if key == "title" {
			less = strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		} else {
			less = numeric(out[i]) < numeric(out[j])
		}
		if descending {
			return !less && !equalKey(out[i], out[j], key, numeric)
		}
		return less
	})
	return out
}

func equalKey(a, b Listing, key string, numeric func(Listing) float64) bool {
	if key == "title" {
		return strings.EqualFold(a.Title, b.Title)
	}
	return numeric(a) == numeric(b)
}

// Stats reports counts, the unique categorical values and the rating and
// duration ranges of a listing collection.
func Stats(listings []Listing) Statistics {
	stats := Statistics{Total: len(listings)}
	if len(listings) == 0 {
		return stats
	}

	stats.Languages = uniqueValues(listings, func(l Listing) string { return l.Language })
	stats.Categories = uniqueValues(listings, func(l Listing) string { return l.Category })
	stats.Instructors = uniqueValues(listings, func(l Listing) string { return l.Instructor })

	stats.RatingMin = listings[0].Rating
	stats.RatingMax = listings[0].Rating
	stats.DurationMin = textutil.ParseDuration(listings[0].Duration, 0)
	stats.DurationMax = stats.DurationMin
	for _, l := range listings[1:] {
		stats.RatingMin = min(stats.RatingMin, l.Rating)
		stats.RatingMax = max(stats.RatingMax, l.Rating)
		d := textutil.ParseDuration(l.Duration, 0)
		stats.DurationMin = min(stats.DurationMin, d)
		stats.DurationMax = max(stats.DurationMax, d)
	}
	return stats
}

func uniqueValues(listings []Listing, get func(Listing) string) []string {
	seen := map[string]bool{}
	var values []string
	for _, l := range listings {
		v := get(l)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
