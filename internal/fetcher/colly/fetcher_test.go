package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	res, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Contains(t, string(res.Body), "hello")
	require.Equal(t, int64(len(res.Body)), res.Size)
	require.NotZero(t, res.Elapsed)
}

func TestFetchErrorStatusIsResultNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	res, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, 404, res.StatusCode)
}

func TestFetchFollowsRedirectsToFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "landed")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	res, err := f.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, srv.URL+"/new", res.FinalURL)
	require.Equal(t, srv.URL+"/old", res.URL)
}

func TestFetchRedirectLimit(t *testing.T) {
	var hops atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hops.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop-%d", n), http.StatusFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second, MaxRedirects: 3})
	_, err := f.Fetch(context.Background(), srv.URL+"/")
	require.Error(t, err)

	var fe *monitor.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, monitor.ReasonTooManyRedirects, fe.Reason)
	require.False(t, fe.Transient())
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), url+"/")
	require.Error(t, err)

	var fe *monitor.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, monitor.ReasonConnectionRefused, fe.Reason)
	require.True(t, fe.Transient())
}

func TestFetchRetriesTransientFailureOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			// First attempt runs into the client timeout.
			time.Sleep(500 * time.Millisecond)
			return
		}
		fmt.Fprint(w, "second time lucky")
	}))
	defer srv.Close()

	f := New(Config{Timeout: 150 * time.Millisecond, RetryBackoff: 10 * time.Millisecond})
	res, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode)
	require.Equal(t, int32(2), calls.Load())
}

func TestFetchDNSFailure(t *testing.T) {
	f := New(Config{Timeout: 2 * time.Second})
	_, err := f.Fetch(context.Background(), "http://host.invalid/")
	require.Error(t, err)

	var fe *monitor.FetchError
	if errors.As(err, &fe) {
		require.Equal(t, monitor.ReasonDNS, fe.Reason)
		require.False(t, fe.Transient())
	}
}

func TestFetchCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := New(Config{Timeout: 10 * time.Second})
	_, err := f.Fetch(ctx, srv.URL+"/")
	require.Error(t, err)

	var fe *monitor.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, monitor.ReasonTimeout, fe.Reason)
}
