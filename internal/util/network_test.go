// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"context"
	"net"
	"strings"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.169.254", true},
		{"::1", true},
		{"fd00::1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
				t.Errorf("IsPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
			}
		})
	}
}

func TestIsPrivateIP_Nil(t *testing.T) {
	if !IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) should return true")
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{"public ip https", "https://8.8.8.8/hook", false, ""},
		{"public ip with port", "http://1.1.1.1:8443/hook?x=1", false, ""},
		{"ftp scheme", "ftp://8.8.8.8/file", true, "http or https"},
		{"javascript scheme", "javascript:alert(1)", true, "http or https"},
		{"no host", "https:///path", true, "hostname"},
		{"localhost", "http://localhost:8080/hook", true, "localhost"},
		{"sub localhost", "http://api.localhost/hook", true, "localhost"},
		{"loopback", "http://127.0.0.1/hook", true, "private"},
		{"metadata", "http://169.254.169.254/latest", true, "private"},
		{"ipv6 loopback", "http://[::1]/hook", true, "private"},
		{"too long", "https://8.8.8.8/" + strings.Repeat("a", MaxWebhookURLLength), true, "maximum length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWebhookURL(context.Background(), tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestSSRFSafeDialContext_BlocksLoopback(t *testing.T) {
	dial := SSRFSafeDialContext(&net.Dialer{})
	_, err := dial(context.Background(), "tcp", "127.0.0.1:80")
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Errorf("dial to loopback: err = %v, want blocked", err)
	}
}
