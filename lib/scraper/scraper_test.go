package scraper

import (
	"context"
	"errors"
	"testing"

	"coursepilot-backend/lib/catalog"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name     string
	listings []catalog.Listing
	err      error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Fetch(ctx context.Context) ([]catalog.Listing, error) {
	return s.listings, s.err
}

func TestAggregateDedupeFirstSeenWins(t *testing.T) {
	s1 := stubSource{name: "s1", listings: []catalog.Listing{
		{URL: "https://www.udemy.com/course/a/?couponCode=X", Source: "s1"},
	}}
	s2 := stubSource{name: "s2", listings: []catalog.Listing{
		{URL: "https://www.udemy.com/course/b/?couponCode=Y", Source: "s2"},
		{URL: "https://www.udemy.com/course/a/?couponCode=X", Source: "s2"},
	}}

	got, err := Aggregate(context.Background(), []Source{s1, s2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "s1", got[0].Source)
	require.Equal(t, "s2", got[1].Source)
}

func TestAggregateFailingSourceIsNotFatal(t *testing.T) {
	broken := stubSource{name: "broken", err: errors.New("connection refused")}
	healthy := stubSource{name: "healthy", listings: []catalog.Listing{
		{URL: "https://www.udemy.com/course/c/?couponCode=Z", Source: "healthy"},
	}}

	got, err := Aggregate(context.Background(), []Source{broken, healthy})
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
	require.Len(t, got, 1)
	require.Equal(t, "healthy", got[0].Source)
}

func TestAggregateKeepsPartialResultsFromFailingSource(t *testing.T) {
	partial := stubSource{
		name: "partial",
		listings: []catalog.Listing{
			{URL: "https://www.udemy.com/course/d/?couponCode=W", Source: "partial"},
		},
		err: errors.New("page 3 timed out"),
	}

	got, err := Aggregate(context.Background(), []Source{partial})
	require.Error(t, err)
	require.Len(t, got, 1)
}
