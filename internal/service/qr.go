// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/olegiv/evsite-go/internal/store"
)

// QRSize is the edge length of verification QR codes in pixels.
const QRSize = 256

// QRCode renders the verification link of a registration as a PNG.
func (s *RegistrationService) QRCode(ctx context.Context, project store.Project, token string) ([]byte, error) {
	reg, err := s.GetByToken(ctx, project, token)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.VerifyURL(project.Slug, reg.VerificationToken), qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	return png, nil
}
