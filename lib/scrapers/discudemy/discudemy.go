// Package discudemy crawls the Discudemy listing pages. Unlike the API-backed
// sources this one needs two fetches per course: the listing page yields a
// card with a title and an opaque id, and a second "go" page resolves that id
// to the real course URL. The listing pages are crawled concurrently under a
// bounded worker pool; page and card failures are skipped, never fatal.
package discudemy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/htmlutil"
	"coursepilot-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("coursepilot.scrapers.discudemy")

const SourceName = "discudemy.com"

type Options struct {
	// defaults to https://www.discudemy.com
	BaseUrl string
	// hostname fragment identifying the course platform, defaults to udemy.com
	CourseHost string
	// number of listing pages to crawl, defaults to 5
	Pages int
	// fan-out bound for concurrent page fetches, defaults to 5
	Workers int
}

type Source struct {
	http       *resty.Client
	courseHost string
	pages      int
	workers    int
}

func New(opts Options) *Source {
	if opts.BaseUrl == "" {
		opts.BaseUrl = "https://www.discudemy.com"
	}
	if opts.CourseHost == "" {
		opts.CourseHost = "udemy.com"
	}
	if opts.Pages <= 0 {
		opts.Pages = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
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

	telemetry.InstrumentResty(client, "scrapers/discudemy/http")

	return &Source{
		http:       client,
		courseHost: opts.CourseHost,
		pages:      opts.Pages,
		workers:    opts.Workers,
	}
}

func (s *Source) Name() string { return SourceName }

// Fetch crawls the configured page range concurrently. A failed page is
// reported in the joined error but does not cancel sibling fetches; the
// listings that did resolve are always returned.
func (s *Source) Fetch(ctx context.Context) ([]catalog.Listing, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	var (
		result  []catalog.Listing
		errList []error
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, s.workers)

	for page := 1; page <= s.pages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			listings, err := s.fetchPage(ctx, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.WarnContext(ctx, "failed to crawl listing page",
					"source", SourceName, "page", page, "err", err)
				errList = append(errList, fmt.Errorf("page %d: %w", page, err))
				return
			}
			result = append(result, listings...)
		}(page)
	}
	wg.Wait()

	span.SetAttributes(attribute.Int("listings", len(result)))
	return result, errors.Join(errList...)
}

func (s *Source) fetchPage(ctx context.Context, page int) ([]catalog.Listing, error) {
	ctx, span := tracer.Start(ctx, "fetchPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	res, err := s.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/all/%d", page))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch listing page")
		return nil, err
	}
	if res.StatusCode() != 200 {
		span.SetStatus(codes.Error, "listing page returned non-200")
		return nil, fmt.Errorf("listing page status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse listing page html")
		return nil, err
	}

	var listings []catalog.Listing
	doc.Find("a.card-header").Each(func(_ int, card *goquery.Selection) {
		title := htmlutil.CleanText(card.Text())
		href := card.AttrOr("href", "")
		if title == "" || href == "" {
			return
		}

		segments := strings.Split(strings.TrimSuffix(href, "/"), "/")
		id := segments[len(segments)-1]

		courseUrl, err := s.resolveCourse(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "failed to resolve course card",
				"source", SourceName, "title", title, "id", id, "err", err)
			return
		}

		listings = append(listings, catalog.Listing{
			Title:  title,
			URL:    courseUrl,
			Source: SourceName,
		})
	})

	return listings, nil
}

// resolveCourse fetches the redirect-resolution page for a card id and pulls
// the course platform link out of its content block. The DOM structure here
// is the fragile part; it stays isolated so it can be swapped if the site
// changes markup.
func (s *Source) resolveCourse(ctx context.Context, id string) (string, error) {
	res, err := s.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/go/%s", id))
	if err != nil {
		return "", err
	}
	if res.StatusCode() != 200 {
		return "", fmt.Errorf("go page status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", err
	}

	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("div.ui.segment a")) {
		if strings.Contains(anchor.Href, s.courseHost) {
			return anchor.Href, nil
		}
	}
	return "", fmt.Errorf("no course link in go page for id %s", id)
}
