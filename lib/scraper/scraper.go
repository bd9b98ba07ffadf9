// Package scraper ties the individual coupon sources together. Each source is
// read-only: the output depends solely on the page range and site state, there
// is no login. A source that fails mid-fetch still returns whatever listings
// it managed to collect; Aggregate logs the failure and keeps going so one
// broken site never empties the whole run.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coursepilot-backend/lib/catalog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("coursepilot.lib.scraper")

// Source is one coupon aggregator site. Fetch may return partial results
// alongside an error.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]catalog.Listing, error)
}

// Aggregate fetches every source in scan order and merges the results,
// deduplicating on the canonical course URL. The first occurrence of a URL
// wins; later duplicates are dropped silently. Source failures are joined
// into the returned error but never discard the listings that did arrive;
// callers decide whether a partial run is acceptable.
func Aggregate(ctx context.Context, sources []Source) ([]catalog.Listing, error) {
	ctx, span := tracer.Start(ctx, "Aggregate")
	defer span.End()

	var merged []catalog.Listing
	var errList []error
	seen := map[string]bool{}

	for _, src := range sources {
		listings, err := src.Fetch(ctx)
		if err != nil {
			slog.WarnContext(ctx, "source unavailable", "source", src.Name(), "err", err)
			errList = append(errList, fmt.Errorf("%s: %w", src.Name(), err))
		}
		kept := 0
		for _, l := range listings {
			if l.URL == "" || seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			merged = append(merged, l)
			kept++
		}
		slog.InfoContext(ctx, "merged source listings",
			"source", src.Name(), "fetched", len(listings), "kept", kept)
	}

	span.SetAttributes(attribute.Int("listings", len(merged)))
	return merged, errors.Join(errList...)
}
