// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"github.com/mileusna/useragent"

	"github.com/olegiv/evsite-go/internal/webhook"
)

// Device classes reported in registration payloads.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// ParseClient extracts browser, OS and device class from a user agent.
// It returns nil for an empty user agent.
func ParseClient(uaString string) *webhook.ClientInfo {
	if uaString == "" {
		return nil
	}
	ua := useragent.Parse(uaString)

	info := &webhook.ClientInfo{Browser: ua.Name, OS: ua.OS}
	if info.Browser == "" {
		info.Browser = "Unknown"
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		info.Device = DeviceMobile
	case ua.Tablet:
		info.Device = DeviceTablet
	case ua.Bot:
		info.Device = DeviceBot
	default:
		info.Device = DeviceDesktop
	}
	return info
}
