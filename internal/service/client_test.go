// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClient(t *testing.T) {
	assert.Nil(t, ParseClient(""))

	tests := []struct {
		name       string
		ua         string
		wantDevice string
		wantOS     string
	}{
		{
			name:       "desktop chrome",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			wantDevice: DeviceDesktop,
			wantOS:     "Windows",
		},
		{
			name:       "iphone",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			wantDevice: DeviceMobile,
			wantOS:     "iOS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseClient(tt.ua)
			require.NotNil(t, info)
			assert.Equal(t, tt.wantDevice, info.Device)
			assert.Equal(t, tt.wantOS, info.OS)
			assert.NotEmpty(t, info.Browser)
		})
	}
}
