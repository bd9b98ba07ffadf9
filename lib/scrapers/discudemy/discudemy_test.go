package discudemy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<a class="card-header" href="/python-bootcamp">Python Bootcamp</a>
<a class="card-header" href="/broken-card">Broken Card</a>
</body></html>`

const goPage = `<html><body>
<div class="ui segment">
  <a href="https://www.udemy.com/course/%s/?couponCode=FREE">Take Course</a>
</div>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/all/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listingPage)
	})
	mux.HandleFunc("/all/2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><a class="card-header" href="/go-crash-course">Go Crash Course</a></body></html>`)
	})
	mux.HandleFunc("/all/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/go/python-bootcamp", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, goPage, "python-bootcamp")
	})
	mux.HandleFunc("/go/go-crash-course", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, goPage, "go-crash-course")
	})
	mux.HandleFunc("/go/broken-card", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="ui segment"><p>nothing here</p></div></body></html>`)
	})
	return httptest.NewServer(mux)
}

func TestFetchResolvesCards(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	src := New(Options{BaseUrl: server.URL, Pages: 2, Workers: 2})
	listings, err := src.Fetch(context.Background())
	require.NoError(t, err)

	// the card without a platform link is skipped
	require.Len(t, listings, 2)

	titles := []string{listings[0].Title, listings[1].Title}
	sort.Strings(titles)
	require.Equal(t, []string{"Go Crash Course", "Python Bootcamp"}, titles)

	for _, l := range listings {
		require.Equal(t, SourceName, l.Source)
		require.Contains(t, l.URL, "couponCode=FREE")
	}
}

func TestFetchPageFailureIsPartial(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	// page 3 responds 404; pages 1-2 still contribute their listings
	src := New(Options{BaseUrl: server.URL, Pages: 3, Workers: 5})
	listings, err := src.Fetch(context.Background())
	require.Error(t, err)
	require.Len(t, listings, 2)
}
