// Package collyfetcher implements monitor.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int
	// RetryBackoff is the wait before the single retry of a transient
	// failure. Zero means retry immediately.
	RetryBackoff time.Duration
}

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
)

var errTooManyRedirects = errors.New("redirect limit exceeded")

// Fetcher implements monitor.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// New builds a Fetcher. One base collector is built up front so per-fetch
// clones share its transport and connection pool.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}

	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET. Responses with 4xx/5xx statuses are
// results, not errors; a failure that never produced a status comes back as a
// *monitor.FetchError, retried once when transient.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.FetchResult, error) {
	result, err := f.fetchOnce(ctx, url)
	if err == nil {
		return result, nil
	}

	var fe *monitor.FetchError
	if !errors.As(err, &fe) || !fe.Transient() || ctx.Err() != nil {
		return monitor.FetchResult{}, err
	}

	if f.cfg.RetryBackoff > 0 {
		select {
		case <-ctx.Done():
			return monitor.FetchResult{}, err
		case <-time.After(f.cfg.RetryBackoff):
		}
	}
	return f.fetchOnce(ctx, url)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (monitor.FetchResult, error) {
	var (
		result   monitor.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(url, start, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return monitor.FetchResult{}, &monitor.FetchError{
			URL:    url,
			Reason: monitor.ReasonTimeout,
			Err:    ctx.Err(),
		}
	case visitErr := <-done:
		if visitErr != nil {
			return monitor.FetchResult{}, classify(url, visitErr)
		}
		if fetchErr != nil {
			return monitor.FetchResult{}, classify(url, fetchErr)
		}
		return result, nil
	}
}

func (f *Fetcher) buildCollector(url string, start time.Time, result *monitor.FetchResult, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	// Error statuses must flow through OnResponse as results.
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	collector.WithTransport(f.transport)

	maxRedirects := f.cfg.MaxRedirects
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return nil
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = monitor.FetchResult{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Elapsed:    time.Since(start),
			Size:       int64(len(r.Body)),
			Body:       append([]byte(nil), r.Body...),
		}
	})

	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})

	return collector
}

// classify maps a transport-level failure onto the fetch error taxonomy.
// An unrecognized failure passes through untyped.
func classify(url string, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &monitor.FetchError{URL: url, Reason: monitor.ReasonDNS, Err: err}
	}
	if errors.Is(err, errTooManyRedirects) {
		return &monitor.FetchError{URL: url, Reason: monitor.ReasonTooManyRedirects, Err: err}
	}
	if isTLSError(err) {
		return &monitor.FetchError{URL: url, Reason: monitor.ReasonTLS, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &monitor.FetchError{URL: url, Reason: monitor.ReasonConnectionRefused, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &monitor.FetchError{URL: url, Reason: monitor.ReasonTimeout, Err: err}
	}
	return err
}

func isTLSError(err error) bool {
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		unknownCA    x509.UnknownAuthorityError
		invalidCert  x509.CertificateInvalidError
		hostnameErr  x509.HostnameError
		alertErr     tls.AlertError
		systemRoots  x509.SystemRootsError
		unhandledErr x509.UnhandledCriticalExtension
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &unknownCA) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &systemRoots) ||
		errors.As(err, &unhandledErr)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
