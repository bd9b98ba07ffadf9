package enroller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coursepilot-backend/lib/catalog"
	"coursepilot-backend/lib/platforms/udemy"
	"coursepilot-backend/lib/scraper"
	"coursepilot-backend/lib/testutil"
	"coursepilot-backend/services/enroller/db"

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

// newPlatformServer fakes the course platform: a logged-in identity, one
// already-owned course, a course landing page and the checkout/verification
// endpoints.
func newPlatformServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api-2.0/contexts/me/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"header": {"isLoggedIn": true, "user": {"display_name": "Test User"}}}`)
	})
	mux.HandleFunc("/api-2.0/users/me/subscribed-courses/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"url": "/course/already-owned/"}], "next": ""}`)
	})
	mux.HandleFunc("/course/good-course/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Good Course</title></head>`+
			`<body><script>{"id":12345}</script></body></html>`)
	})
	mux.HandleFunc("/course/subscribe/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "ok"}`)
	})
	mux.HandleFunc("/api-2.0/users/me/subscribed-courses/12345/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"_class": "course"}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newAuthenticatedClient(t *testing.T, server *httptest.Server) *udemy.Client {
	client, err := udemy.NewClient(udemy.ClientOptions{
		BaseUrl:     server.URL,
		EnrollDelay: time.Millisecond * 5,
	})
	require.NoError(t, err)

	ok, err := client.Validate(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	return client
}

func TestFetchAndEnroll(t *testing.T) {
	server := newPlatformServer(t)
	client := newAuthenticatedClient(t, server)
	database := testutil.SetupDB(t, db.Schema)

	goodUrl := server.URL + "/course/good-course/?couponCode=FREE"
	ownedUrl := server.URL + "/course/already-owned/?couponCode=FREE"

	source := stubSource{
		name: "stub",
		listings: []catalog.Listing{
			{Title: "Good Course", URL: goodUrl, Source: "stub", Rating: 4.5},
			{Title: "Low Rated Course", URL: server.URL + "/course/low-rated/?couponCode=X", Source: "stub", Rating: 3.0},
			{Title: "Already Owned", URL: ownedUrl, Source: "stub", Rating: 4.8},
		},
	}

	service := NewService(Options{
		Sources:  []scraper.Source{source},
		Client:   client,
		Filter:   &catalog.Options{MinRating: 4.0},
		Database: database,
	})

	report, err := service.FetchAndEnroll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Fetched)
	require.Equal(t, 2, report.Matched)
	require.Equal(t, 2, report.Attempted)
	require.Equal(t, 2, report.Succeeded())

	require.True(t, report.Results[goodUrl].Success)
	require.Equal(t, udemy.ReasonNone, report.Results[goodUrl].Reason)
	require.Equal(t, udemy.ReasonAlreadyEnrolled, report.Results[ownedUrl].Reason)

	history, err := service.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, entry := range history {
		require.True(t, entry.Success)
		require.Equal(t, "stub", entry.Source)
	}
}

func TestFetchAndEnrollRequiresAuthentication(t *testing.T) {
	server := newPlatformServer(t)
	client, err := udemy.NewClient(udemy.ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	service := NewService(Options{Client: client})
	_, err = service.FetchAndEnroll(context.Background())
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestFetchAndEnrollAllSourcesFailed(t *testing.T) {
	server := newPlatformServer(t)
	client := newAuthenticatedClient(t, server)

	service := NewService(Options{
		Sources: []scraper.Source{stubSource{name: "down", err: errors.New("unreachable")}},
		Client:  client,
	})
	_, err := service.FetchAndEnroll(context.Background())
	require.Error(t, err)
}

func TestHistoryWithoutDatabase(t *testing.T) {
	server := newPlatformServer(t)
	client := newAuthenticatedClient(t, server)

	service := NewService(Options{Client: client})
	_, err := service.History(context.Background(), 10)
	require.Error(t, err)
}
