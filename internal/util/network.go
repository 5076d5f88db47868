// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxWebhookURLLength is the maximum allowed length for a webhook URL.
const MaxWebhookURLLength = 2048

// privateIPBlocks are loopback, private and reserved ranges that outbound
// requests must never reach.
var privateIPBlocks []*net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"0.0.0.0/8",
		"100.64.0.0/10",
		"192.0.0.0/24",
		"192.0.2.0/24",
		"198.18.0.0/15",
		"198.51.100.0/24",
		"203.0.113.0/24",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
		"::/128",
	}
	for _, cidr := range cidrs {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil {
			privateIPBlocks = append(privateIPBlocks, block)
		}
	}
}

// IsPrivateIP checks if an IP address falls within a private or reserved range.
// A nil IP counts as private.
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	for _, block := range privateIPBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateWebhookURL checks scheme and host of an outbound webhook URL and,
// for hostnames, that no resolved address is private.
func ValidateWebhookURL(ctx context.Context, rawURL string) error {
	if len(rawURL) > MaxWebhookURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", MaxWebhookURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("URL must use http or https scheme")
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return errors.New("URL must have a hostname")
	}

	lower := strings.ToLower(hostname)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return errors.New("localhost URLs are not allowed")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if IsPrivateIP(ip) {
			return errors.New("private or reserved IP addresses are not allowed")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname %q: %w", hostname, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("hostname %q did not resolve to any IP addresses", hostname)
	}
	for _, ipAddr := range ips {
		if IsPrivateIP(ipAddr.IP) {
			return fmt.Errorf("hostname %q resolves to private IP address %s", hostname, ipAddr.IP)
		}
	}

	return nil
}

// SSRFSafeDialContext returns a DialContext that refuses private addresses at
// connection time and dials the vetted IP directly, so a second DNS answer
// cannot redirect the connection.
func SSRFSafeDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", host, err)
		}

		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s (resolved from %q) is blocked", ipAddr.IP, host)
			}
		}

		for _, ipAddr := range ips {
			conn, dialErr := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if dialErr == nil {
				return conn, nil
			}
			err = dialErr
		}

		return nil, fmt.Errorf("failed to connect to %q: %w", host, err)
	}
}

// NewSafeHTTPClient returns an HTTP client whose connections go through
// SSRFSafeDialContext.
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:         SSRFSafeDialContext(dialer),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
