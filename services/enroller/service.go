// Package enroller wires the pipeline together: pull listings from every
// configured source, filter them down to courses worth taking, then redeem
// their coupons against the authenticated platform session. Each run is
// recorded in the enrollment history table when a database is attached.
package enroller

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/platforms/udemy"
	"coursepilot-backend/lib/scraper"
	"coursepilot-backend/services/enroller/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/enroller")

var ErrNotAuthenticated = errors.New("platform client is not authenticated")

// DefaultFilter keeps well-rated, reasonably sized courses on mainstream
// programming topics and drops entry-level filler.
var DefaultFilter = catalog.Options{
	MinRating:        4.0,
	MaxDurationHours: 10,
	IncludeKeywords:  []string{"python", "javascript", "programming", "development", "web"},
	ExcludeKeywords:  []string{"beginner", "basic", "intro"},
}

type Options struct {
	Sources []scraper.Source
	Client  *udemy.Client
	// nil means DefaultFilter; point at a zero catalog.Options to disable
	// filtering entirely
	Filter *catalog.Options
	// cap on enrollment attempts per run, defaults to 10
	MaxEnroll int
	// optional; enables the enrollment history
	Database *sql.DB
}

type Service struct {
	sources   []scraper.Source
	client    *udemy.Client
	filter    catalog.Options
	maxEnroll int
	qry       *db.Queries
}

func NewService(opts Options) Service {
	filter := DefaultFilter
	if opts.Filter != nil {
		filter = *opts.Filter
	}
	maxEnroll := opts.MaxEnroll
	if maxEnroll <= 0 {
		maxEnroll = 10
	}

	var qry *db.Queries
	if opts.Database != nil {
		qry = db.New(opts.Database)
	}

	return Service{
		sources:   opts.Sources,
		client:    opts.Client,
		filter:    filter,
		maxEnroll: maxEnroll,
		qry:       qry,
	}
}

// Report summarizes one FetchAndEnroll run.
type Report struct {
	// listings returned by the sources after deduplication
	Fetched int
	// listings that survived the filter
	Matched int
	// attempts actually made, bounded by MaxEnroll
	Attempted int
	Results   map[string]udemy.EnrollmentResult
}

// Succeeded counts the attempts that ended enrolled, including courses that
// were already on the account.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// FetchAndEnroll runs the whole pipeline once. Source failures are tolerated
// as long as at least one source produced listings; an unauthenticated client
// is fatal since every attempt would fail anyway.
func (s Service) FetchAndEnroll(ctx context.Context) (Report, error) {
	ctx, span := tracer.Start(ctx, "FetchAndEnroll")
	defer span.End()

	if !s.client.Authenticated() {
		span.SetStatus(codes.Error, ErrNotAuthenticated.Error())
		return Report{}, ErrNotAuthenticated
	}

	listings, err := scraper.Aggregate(ctx, s.sources)
	if len(listings) == 0 && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "all sources failed")
		return Report{}, err
	}

	matched := catalog.Filter(listings, s.filter)
	span.SetAttributes(
		attribute.Int("fetched", len(listings)),
		attribute.Int("matched", len(matched)),
	)
	slog.InfoContext(ctx, "filtered listings",
		"fetched", len(listings), "matched", len(matched))

	if len(matched) > s.maxEnroll {
		matched = matched[:s.maxEnroll]
	}

	byUrl := make(map[string]catalog.Listing, len(matched))
	urls := make([]string, 0, len(matched))
	for _, l := range matched {
		byUrl[l.URL] = l
		urls = append(urls, l.URL)
	}

	results := s.client.EnrollMany(ctx, urls)
	s.recordResults(ctx, byUrl, results)

	report := Report{
		Fetched:   len(listings),
		Matched:   len(matched),
		Attempted: len(urls),
		Results:   results,
	}
	slog.InfoContext(ctx, "enrollment run finished",
		"attempted", report.Attempted, "succeeded", report.Succeeded())
	return report, nil
}

func (s Service) recordResults(ctx context.Context, byUrl map[string]catalog.Listing, results map[string]udemy.EnrollmentResult) {
	if s.qry == nil {
		return
	}
	now := time.Now().Unix()
	for url, result := range results {
		err := s.qry.RecordEnrollment(ctx, db.RecordEnrollmentParams{
			Url:         url,
			Title:       byUrl[url].Title,
			Source:      byUrl[url].Source,
			Success:     result.Success,
			Reason:      string(result.Reason),
			Message:     result.Message,
			AttemptedAt: now,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to record enrollment", "url", url, "err", err)
		}
	}
}

// History returns the most recent enrollment attempts, newest first. It
// errors when the service was built without a database.
func (s Service) History(ctx context.Context, limit int64) ([]db.Enrollment, error) {
	if s.qry == nil {
		return nil, errors.New("enrollment history is not enabled")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.qry.ListRecentEnrollments(ctx, limit)
}
