// Package sslcheck inspects a site's TLS certificate chain and reports
// certificates that are invalid or close to expiry.
package sslcheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/PrabhuV2003/Website-Monitoring/internal/monitor"
)

// Expiry thresholds. Inside warnWindow a certificate is worth a heads-up;
// inside urgentWindow renewal is overdue.
const (
	urgentWindow = 7 * 24 * time.Hour
	warnWindow   = 30 * 24 * time.Hour

	defaultTimeout = 10 * time.Second
)

// Checker performs a TLS handshake against a site origin and grades the
// presented certificate.
type Checker struct {
	timeout time.Duration
	rootCAs *x509.CertPool
	clock   monitor.Clock
}

// New builds a Checker. rootCAs may be nil to use the system trust store.
func New(timeout time.Duration, rootCAs *x509.CertPool, clock monitor.Clock) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{timeout: timeout, rootCAs: rootCAs, clock: clock}
}

// Check dials the origin and returns at most one finding. Non-HTTPS origins
// have nothing to check and return nil.
func (c *Checker) Check(ctx context.Context, origin string) []monitor.Finding {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return nil
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			ServerName: host,
			RootCAs:    c.rootCAs,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return []monitor.Finding{{
			Severity:  monitor.SeverityCritical,
			Category:  monitor.CategorySSL,
			Message:   fmt.Sprintf("TLS handshake failed: %v", err),
			TargetURL: origin,
			Timestamp: c.clock.Now(),
		}}
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return []monitor.Finding{{
			Severity:  monitor.SeverityCritical,
			Category:  monitor.CategorySSL,
			Message:   "server presented no certificate",
			TargetURL: origin,
			Timestamp: c.clock.Now(),
		}}
	}
	return c.gradeExpiry(origin, state.PeerCertificates[0])
}

func (c *Checker) gradeExpiry(origin string, leaf *x509.Certificate) []monitor.Finding {
	now := c.clock.Now()
	remaining := leaf.NotAfter.Sub(now)

	var severity monitor.Severity
	switch {
	case remaining <= 0:
		severity = monitor.SeverityCritical
	case remaining < urgentWindow:
		severity = monitor.SeverityHigh
	case remaining < warnWindow:
		severity = monitor.SeverityMedium
	default:
		return nil
	}

	msg := fmt.Sprintf("certificate expires %s (in %d days)",
		leaf.NotAfter.UTC().Format("2006-01-02"), int(remaining.Hours()/24))
	if remaining <= 0 {
		msg = fmt.Sprintf("certificate expired %s", leaf.NotAfter.UTC().Format("2006-01-02"))
	}
	return []monitor.Finding{{
		Severity:  severity,
		Category:  monitor.CategorySSL,
		Message:   msg,
		TargetURL: origin,
		Timestamp: now,
	}}
}
