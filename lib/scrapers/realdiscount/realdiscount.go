// Package realdiscount fetches coupon listings from the Real Discount
// aggregator through its public course API.
package realdiscount

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/telemetry"
	"coursepilot-backend/lib/textutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("coursepilot.scrapers.realdiscount")

const SourceName = "real.discount"

type Options struct {
	// defaults to https://cdn.real.discount
	BaseUrl string
	// hostname fragment identifying the course platform, defaults to udemy.com
	CourseHost string
	// page size for the single API request, defaults to 500
	Limit int
}

type Source struct {
	http       *resty.Client
	courseHost string
	limit      int
}

func New(opts Options) *Source {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://cdn.real.discount"
	}
	if opts.CourseHost == "" {
		opts.CourseHost = "udemy.com"
	}
	if opts.Limit <= 0 {
		opts.Limit = 500
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(time.Millisecond * 500)
	client.SetRetryMaxWaitTime(time.Second * 2)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return false
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	telemetry.InstrumentResty(client, "scrapers/realdiscount/http")

	return &Source{
		http:       client,
		courseHost: opts.CourseHost,
		limit:      opts.Limit,
	}
}

func (s *Source) Name() string { return SourceName }

// flexString tolerates fields the API serves as either a string or a number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*f = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		*f = flexString(num.String())
		return nil
	}
	*f = ""
	return nil
}

type apiItem struct {
	Name       string     `json:"name"`
	Url        string     `json:"url"`
	Store      string     `json:"store"`
	Rating     flexString `json:"rating"`
	Duration   flexString `json:"duration"`
	Language   string     `json:"language"`
	Category   string     `json:"category"`
	Instructor string     `json:"instructor"`
	Students   flexString `json:"students"`
	ShortDesc  string     `json:"shortDescription"`
}

type apiResponse struct {
	Items []apiItem `json:"items"`
}

// Fetch issues the single paginated API request and resolves every item to a
// canonical course URL. Items from sponsored placements are dropped, as are
// items whose URL cannot be resolved onto the course platform.
func (s *Source) Fetch(ctx context.Context) ([]catalog.Listing, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"page":     "1",
			"limit":    strconv.Itoa(s.limit),
			"sortBy":   "sale_start",
			"store":    "Udemy",
			"freeOnly": "true",
		}).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Referer", "https://www.real.discount/").
		Get("/api/courses")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course api request failed")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "course api returned non-200")
		return nil, fmt.Errorf("course api status %d", res.StatusCode())
	}

	var body apiResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode course api response")
		return nil, fmt.Errorf("decode course api response: %w", err)
	}

	var listings []catalog.Listing
	for _, item := range body.Items {
		if item.Store == "Sponsored" {
			continue
		}
		title := strings.TrimSpace(item.Name)
		rawUrl := strings.TrimSpace(item.Url)
		if title == "" || rawUrl == "" {
			continue
		}

		courseUrl, err := s.resolveCourseUrl(ctx, rawUrl)
		if err != nil {
			slog.WarnContext(ctx, "dropping unresolvable listing",
				"title", title, "url", rawUrl, "err", err)
			continue
		}

		listings = append(listings, catalog.Listing{
			Title:       title,
			URL:         courseUrl,
			Source:      SourceName,
			Rating:      textutil.ParseRating(string(item.Rating), 0),
			Duration:    string(item.Duration),
			Language:    item.Language,
			Category:    item.Category,
			Instructor:  item.Instructor,
			Students:    string(item.Students),
			Description: item.ShortDesc,
		})
	}

	span.SetAttributes(attribute.Int("listings", len(listings)))
	return listings, nil
}

// resolveCourseUrl returns rawUrl if it already points at the course
// platform, otherwise follows redirects to find the final location.
func (s *Source) resolveCourseUrl(ctx context.Context, rawUrl string) (string, error) {
	if s.onCoursePlatform(rawUrl) {
		return rawUrl, nil
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(rawUrl)
	if err != nil {
		return "", err
	}
	if res.StatusCode() != 200 {
		return "", fmt.Errorf("redirect target status %d", res.StatusCode())
	}
	final := res.RawResponse.Request.URL.String()
	if !s.onCoursePlatform(final) {
		return "", fmt.Errorf("redirect landed off-platform: %s", final)
	}
	return final, nil
}

func (s *Source) onCoursePlatform(rawUrl string) bool {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return false
	}
	return strings.Contains(u.Hostname(), s.courseHost)
}
