// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging stores uploaded images and their resized variants.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/olegiv/evsite-go/internal/util"
)

// Supported MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// MaxUploadSize bounds a single upload.
const MaxUploadSize = 10 << 20

// OriginalDir holds the re-encoded upload without EXIF data.
const OriginalDir = "originals"

// Errors returned by Process.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds upload limit")
)

// Variant describes a resized copy. Images already within MaxSide are not resized.
type Variant struct {
	Name    string
	MaxSide int
	Quality int
}

// Variants are produced for every upload.
var Variants = []Variant{
	{Name: "display", MaxSide: 1920, Quality: 85},
	{Name: "thumb", MaxSide: 400, Quality: 80},
}

// Result describes a processed upload.
type Result struct {
	Filename string
	MimeType string
	Width    int
	Height   int
	Size     int64
	Variants []VariantResult
}

// VariantResult describes one stored variant.
type VariantResult struct {
	Name   string
	Width  int
	Height int
	Size   int64
}

// Processor writes images below uploadDir as <dir>/<variant>/<id>/<filename>.
type Processor struct {
	uploadDir string
}

// NewProcessor creates a processor rooted at uploadDir.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{uploadDir: uploadDir}
}

// Process decodes the upload, applies EXIF orientation, stores the original
// and every variant under dir. WebP input is stored as JPEG.
func (p *Processor) Process(r io.Reader, dir, id, filename string) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, ErrTooLarge
	}

	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	name, err := util.SanitizeFilename(filename)
	if err != nil {
		return nil, err
	}
	outFormat := format
	if format == "webp" {
		outFormat = "jpeg"
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	encoded, err := encodeImage(img, outFormat, 95)
	if err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	if err := p.save(dir, OriginalDir, id, name, encoded); err != nil {
		return nil, err
	}

	b := img.Bounds()
	res := &Result{
		Filename: name,
		MimeType: formatToMimeType(outFormat),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Size:     int64(len(encoded)),
	}

	for _, v := range Variants {
		resized := img
		if b.Dx() > v.MaxSide || b.Dy() > v.MaxSide {
			resized = imaging.Fit(img, v.MaxSide, v.MaxSide, imaging.Lanczos)
		}
		out, err := encodeImage(resized, outFormat, v.Quality)
		if err != nil {
			return nil, fmt.Errorf("encoding %s variant: %w", v.Name, err)
		}
		if err := p.save(dir, v.Name, id, name, out); err != nil {
			return nil, err
		}
		rb := resized.Bounds()
		res.Variants = append(res.Variants, VariantResult{
			Name:   v.Name,
			Width:  rb.Dx(),
			Height: rb.Dy(),
			Size:   int64(len(out)),
		})
	}

	return res, nil
}

// Path returns the file path of a stored variant, or of the original when
// variant is OriginalDir.
func (p *Processor) Path(dir, variant, id, filename string) (string, error) {
	return util.SafeJoinPath(p.uploadDir, dir, variant, id, filename)
}

// URL returns the public URL of a stored variant below prefix (e.g. "/uploads").
func URL(prefix, dir, variant, id, filename string) string {
	return path.Join(prefix, dir, variant, id, filename)
}

// Delete removes the original and all variants of id.
func (p *Processor) Delete(dir, id string) error {
	for _, sub := range append([]string{OriginalDir}, variantNames()...) {
		target, err := util.SafeJoinPath(p.uploadDir, dir, sub, id)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("removing %s: %w", sub, err)
		}
	}
	return nil
}

// DeleteAll removes every upload below dir.
func (p *Processor) DeleteAll(dir string) error {
	if dir == "" {
		return errors.New("empty upload directory")
	}
	target, err := util.SafeJoinPath(p.uploadDir, dir)
	if err != nil {
		return err
	}
	return os.RemoveAll(target)
}

// MoveDir renames the upload directory of a project. A missing source is not an error.
func (p *Processor) MoveDir(from, to string) error {
	if from == "" || to == "" {
		return errors.New("empty upload directory")
	}
	src, err := util.SafeJoinPath(p.uploadDir, from)
	if err != nil {
		return err
	}
	dst, err := util.SafeJoinPath(p.uploadDir, to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// Dimensions reads the size of a stored image without decoding pixels.
func Dimensions(file string) (width, height int, err error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("reading image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// IsSupportedType reports whether mimeType can be uploaded.
func IsSupportedType(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// DetectMimeType sniffs the MIME type of data without parameters.
func DetectMimeType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i != -1 {
		ct = ct[:i]
	}
	return ct
}

func variantNames() []string {
	names := make([]string, len(Variants))
	for i, v := range Variants {
		names[i] = v.Name
	}
	return names
}

func (p *Processor) save(dir, variant, id, filename string, data []byte) error {
	target, err := util.SafeJoinPath(p.uploadDir, dir, variant, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, filename), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", variant, err)
	}
	return nil
}

// readExifOrientation returns the EXIF orientation tag, or 1 when absent.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}

// applyOrientation undoes EXIF orientation 2 through 8.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func detectFormat(data []byte) string {
	ct := http.DetectContentType(data)
	// TIFF decoding in disintegration/imaging is vulnerable (CVE-2023-36308).
	if strings.Contains(ct, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(ct, "jpeg"):
		return "jpeg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatToMimeType(format string) string {
	switch format {
	case "jpeg":
		return MimeTypeJPEG
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}
