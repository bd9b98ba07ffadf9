package realdiscount

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// The fake server is reachable both as 127.0.0.1 (playing the aggregator) and
// as localhost (playing the course platform), so redirect resolution can be
// exercised against a single listener.
func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	var platformBase string

	mux.HandleFunc("/api/courses", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("freeOnly"))
		require.Equal(t, "Udemy", r.URL.Query().Get("store"))

		payload := map[string]any{
			"items": []map[string]any{
				{
					"name":     "Python Bootcamp",
					"url":      platformBase + "/course/python-bootcamp/?couponCode=ABC",
					"store":    "Udemy",
					"rating":   "4.5",
					"duration": 8.5,
					"language": "English",
					"category": "Programming",
					"students": 1500,
				},
				{
					"name":  "Sponsored Junk",
					"url":   platformBase + "/course/junk/?couponCode=NOPE",
					"store": "Sponsored",
				},
				{
					"name":  "Affiliate Linked Course",
					"url":   "http://127.0.0.1:" + r.URL.Query().Get("_port") + "/out/42",
					"store": "Udemy",
				},
				{
					"name":  "Dead Link Course",
					"url":   "http://127.0.0.1:" + r.URL.Query().Get("_port") + "/out/missing",
					"store": "Udemy",
				},
			},
		}
		json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("/out/42", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, platformBase+"/course/linked/?couponCode=XYZ", http.StatusFound)
	})
	mux.HandleFunc("/out/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	port := parsed.Port()
	platformBase = "http://localhost:" + port

	src := New(Options{BaseUrl: server.URL, CourseHost: "localhost"})
	// smuggle the port through so handlers can build absolute local URLs
	src.http.SetQueryParam("_port", port)

	listings, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, listings, 2)
	require.Equal(t, "Python Bootcamp", listings[0].Title)
	require.Equal(t, platformBase+"/course/python-bootcamp/?couponCode=ABC", listings[0].URL)
	require.Equal(t, SourceName, listings[0].Source)
	require.Equal(t, 4.5, listings[0].Rating)
	require.Equal(t, "8.5", listings[0].Duration)
	require.Equal(t, "1500", listings[0].Students)

	// affiliate link resolved through the redirect
	require.Equal(t, "Affiliate Linked Course", listings[1].Title)
	require.Equal(t, platformBase+"/course/linked/?couponCode=XYZ", listings[1].URL)
}

func TestFetchServerDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	src := New(Options{BaseUrl: server.URL})
	listings, err := src.Fetch(context.Background())
	require.Error(t, err)
	require.Empty(t, listings)
}

func TestFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	src := New(Options{BaseUrl: server.URL})
	_, err := src.Fetch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), fmt.Sprint(http.StatusForbidden))
}
