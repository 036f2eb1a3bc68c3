package common

// Image normalizer for the certificate gallery
//
// Responsibilities:
// 1. Pick up every image file directly inside the source folder
//    (png, jpg, jpeg, gif, bmp; extension is case-insensitive)
// 2. Downscale images wider than the configured max width (Lanczos),
//    keeping the aspect ratio and rounding the height down
// 3. Flatten images to opaque RGB when the output is JPEG
// 4. Write the result under the same filename in the target folder
// 5. Collect a manifest record per written image for the page builder
//
// Files that cannot be decoded are logged and skipped. Filesystem
// failures on the target side abort the run.

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"

	"certgallery/src/config"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
}

// IsImageFile reports whether the filename has one of the supported image extensions.
// A name that is only an extension, like ".png", has no extension.
func IsImageFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == name {
		return false
	}
	return imageExtensions[strings.ToLower(ext)]
}

func isJPEG(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

// Normalizer resizes and re-encodes certificate images
type Normalizer struct {
	MaxWidth int
	Quality  int
	log      *log.Logger
}

// NormalizeResult is the outcome of one normalize run
type NormalizeResult struct {
	Records  Manifest
	Failures []*DecodeError
}

// NewNormalizer creates a normalizer from the config
func NewNormalizer(cfg *config.Config, logger *log.Logger) *Normalizer {
	return &Normalizer{
		MaxWidth: cfg.MaxWidth,
		Quality:  cfg.Quality,
		log:      logger,
	}
}

// Normalize processes every image in sourceDir and writes the copies to destDir.
// Records are ordered by filename. An empty manifest is not an error.
func (n *Normalizer) Normalize(sourceDir, destDir string) (*NormalizeResult, error) {
	// os.ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, &FilesystemError{Op: "read directory", Path: sourceDir, Err: err}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &FilesystemError{Op: "create directory", Path: destDir, Err: err}
	}

	n.log.Info("🖼️  Processing certificate images", "source", sourceDir, "max_width", n.MaxWidth)

	result := &NormalizeResult{Records: Manifest{}}
	for _, entry := range entries {
		name := entry.Name()
		if !IsImageFile(name) {
			continue
		}

		srcPath := filepath.Join(sourceDir, name)

		// Stat follows symlinks, so linked images are picked up too
		info, err := os.Stat(srcPath)
		if err != nil || !info.Mode().IsRegular() {
			n.log.Debug("Skipping non-regular entry", "file", name)
			continue
		}

		img, decErr := n.decode(srcPath)
		if decErr != nil {
			n.log.Warn("⚠️  Skipping unreadable image", "file", name, "err", decErr.Err, "detected", decErr.DetectedType)
			result.Failures = append(result.Failures, decErr)
			continue
		}

		origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
		out := n.Scale(img)
		if isJPEG(name) {
			out = Flatten(out)
		}

		if err := n.encode(out, filepath.Join(destDir, name)); err != nil {
			return nil, err
		}

		result.Records = append(result.Records, NewCertificateRecord(name))
		n.log.Info("✓ Processed", "file", name,
			"from", fmt.Sprintf("%dx%d", origW, origH),
			"to", fmt.Sprintf("%dx%d", out.Bounds().Dx(), out.Bounds().Dy()))
	}

	n.log.Info(fmt.Sprintf("Processed %d certificate images", len(result.Records)), "failed", len(result.Failures))
	return result, nil
}

// decode reads and decodes one source file. Read failures are treated like
// decode failures: the file is reported and skipped.
func (n *Normalizer) decode(path string) (image.Image, *DecodeError) {
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Filename: name, Err: err}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{
			Filename:     name,
			DetectedType: mimetype.Detect(data).String(),
			Err:          err,
		}
	}
	return img, nil
}

// Scale downsizes img to MaxWidth when it is wider, otherwise returns it untouched.
// The new height is floor(height * MaxWidth / width), at least one pixel.
func (n *Normalizer) Scale(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= n.MaxWidth {
		return img
	}

	height := b.Dy() * n.MaxWidth / b.Dx()
	if height < 1 {
		height = 1
	}

	resized := imaging.Resize(img, n.MaxWidth, height, imaging.Lanczos)
	return restoreMode(img, resized)
}

// restoreMode converts a resized NRGBA image back to the colour model of the
// source for grayscale, 16-bit and paletted images.
func restoreMode(src image.Image, resized *image.NRGBA) image.Image {
	var dst draw.Image
	switch s := src.(type) {
	case *image.Gray:
		dst = image.NewGray(resized.Bounds())
	case *image.Gray16:
		dst = image.NewGray16(resized.Bounds())
	case *image.NRGBA64:
		dst = image.NewNRGBA64(resized.Bounds())
	case *image.RGBA64:
		dst = image.NewRGBA64(resized.Bounds())
	case *image.Paletted:
		dst = image.NewPaletted(resized.Bounds(), s.Palette)
	default:
		return resized
	}
	draw.Draw(dst, dst.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return dst
}

// Flatten returns an opaque copy of img with the alpha channel dropped.
// Colour values are kept as they are, not composited onto a background.
func Flatten(img image.Image) image.Image {
	if _, ok := img.(*image.YCbCr); ok {
		return img
	}

	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// encode writes img to path in the format given by its extension
func (n *Normalizer) encode(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return &FilesystemError{Op: "encode", Path: path, Err: err}
	}

	// Encode fully in memory so an encoder error never leaves a truncated file
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format,
		imaging.JPEGQuality(n.Quality),
		imaging.PNGCompressionLevel(png.BestCompression),
		imaging.GIFNumColors(256),
	); err != nil {
		return &FilesystemError{Op: "encode", Path: path, Err: err}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return &FilesystemError{Op: "write", Path: path, Err: err}
	}
	return nil
}
