package common

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func writeFixture(t *testing.T, path string, img image.Image, encode func(*bytes.Buffer, image.Image) error) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func pngEnc(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) }
func jpegEnc(b *bytes.Buffer, img image.Image) error {
	return jpeg.Encode(b, img, &jpeg.Options{Quality: 95})
}
func gifEnc(b *bytes.Buffer, img image.Image) error { return gif.Encode(b, img, nil) }
func bmpEnc(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) }

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	return img
}

func newTestNormalizer(maxWidth int) *Normalizer {
	return &Normalizer{MaxWidth: maxWidth, Quality: 85, log: DiscardLogger()}
}

func TestNormalizeExample(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "site", "certificates")

	writeFixture(t, filepath.Join(src, "cert-2.jpg"), gradient(600, 400), jpegEnc)
	writeFixture(t, filepath.Join(src, "award_1.png"), gradient(1600, 1200), pngEnc)

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)

	require.Len(t, result.Records, 2)
	assert.Equal(t, CertificateRecord{Filename: "award_1.png", RelativePath: "certificates/award_1.png"}, result.Records[0])
	assert.Equal(t, CertificateRecord{Filename: "cert-2.jpg", RelativePath: "certificates/cert-2.jpg"}, result.Records[1])

	award := decodeFile(t, filepath.Join(dst, "award_1.png"))
	assert.Equal(t, 800, award.Bounds().Dx())
	assert.Equal(t, 600, award.Bounds().Dy())

	cert := decodeFile(t, filepath.Join(dst, "cert-2.jpg"))
	assert.Equal(t, 600, cert.Bounds().Dx())
	assert.Equal(t, 400, cert.Bounds().Dy())
}

func TestScaleDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{name: "narrower than max", w: 640, h: 480, wantW: 640, wantH: 480},
		{name: "exactly max", w: 800, h: 600, wantW: 800, wantH: 600},
		{name: "one pixel over", w: 801, h: 100, wantW: 800, wantH: 99},
		{name: "height rounds down", w: 1600, h: 1201, wantW: 800, wantH: 600},
		{name: "portrait", w: 1000, h: 3000, wantW: 800, wantH: 2400},
		{name: "extreme panorama keeps one row", w: 3000, h: 1, wantW: 800, wantH: 1},
	}

	n := newTestNormalizer(800)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := n.Scale(gradient(tt.w, tt.h))
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}
}

func TestScaleLeavesSmallImagesUntouched(t *testing.T) {
	img := gradient(300, 200)
	out := newTestNormalizer(800).Scale(img)
	assert.Same(t, img, out)
}

func TestJPEGOutputHasNoAlpha(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	// PNG data with a mostly transparent layer, saved under a .jpg name
	translucent := solid(64, 64, color.NRGBA{R: 200, G: 30, B: 30, A: 10})
	writeFixture(t, filepath.Join(src, "seal.jpg"), translucent, pngEnc)
	writeFixture(t, filepath.Join(src, "stamp.JPEG"), solid(1200, 300, color.NRGBA{R: 20, G: 90, B: 160, A: 0}), pngEnc)

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	for _, name := range []string{"seal.jpg", "stamp.JPEG"} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format, name)
		assert.Equal(t, color.YCbCrModel, cfg.ColorModel, name)
	}

	// Alpha is dropped, not composited: the straight colour survives
	seal := decodeFile(t, filepath.Join(dst, "seal.jpg"))
	r, g, b, a := seal.At(32, 32).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	assert.InDelta(t, 200, r>>8, 12)
	assert.InDelta(t, 30, g>>8, 12)
	assert.InDelta(t, 30, b>>8, 12)

	stamp := decodeFile(t, filepath.Join(dst, "stamp.JPEG"))
	assert.Equal(t, image.Rect(0, 0, 800, 200), stamp.Bounds())
}

func TestPNGPreservesAlpha(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFixture(t, filepath.Join(src, "badge.png"), solid(1000, 500, color.NRGBA{R: 10, G: 200, B: 10, A: 128}), pngEnc)

	_, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)

	out := decodeFile(t, filepath.Join(dst, "badge.png"))
	assert.Equal(t, image.Rect(0, 0, 800, 400), out.Bounds())

	opaque, ok := out.(interface{ Opaque() bool })
	require.True(t, ok)
	assert.False(t, opaque.Opaque(), "alpha channel should survive a PNG resize")
}

func TestResizeKeepsColorMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	gray := image.NewGray(image.Rect(0, 0, 1200, 300))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 251)
	}
	writeFixture(t, filepath.Join(src, "gray.png"), gray, pngEnc)

	paletted := image.NewPaletted(image.Rect(0, 0, 1200, 300), palette.Plan9)
	for i := range paletted.Pix {
		paletted.Pix[i] = uint8(i % 64)
	}
	writeFixture(t, filepath.Join(src, "paletted.png"), paletted, pngEnc)

	_, err := newTestNormalizer(600).Normalize(src, dst)
	require.NoError(t, err)

	grayOut := decodeFile(t, filepath.Join(dst, "gray.png"))
	assert.IsType(t, &image.Gray{}, grayOut)
	assert.Equal(t, image.Rect(0, 0, 600, 150), grayOut.Bounds())

	palOut := decodeFile(t, filepath.Join(dst, "paletted.png"))
	assert.IsType(t, &image.Paletted{}, palOut)
	assert.Equal(t, image.Rect(0, 0, 600, 150), palOut.Bounds())
}

func TestResizeKeeps16BitMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	translucent := image.NewNRGBA64(image.Rect(0, 0, 1200, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 1200; x++ {
			translucent.SetNRGBA64(x, y, color.NRGBA64{R: uint16(x * 50), G: 0x8000, B: 0x1234, A: 0x9000})
		}
	}
	writeFixture(t, filepath.Join(src, "deep-alpha.png"), translucent, pngEnc)

	opaque := image.NewRGBA64(image.Rect(0, 0, 1200, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 1200; x++ {
			opaque.SetRGBA64(x, y, color.RGBA64{R: uint16(y * 200), G: 0x4000, B: 0xc000, A: 0xffff})
		}
	}
	writeFixture(t, filepath.Join(src, "deep.png"), opaque, pngEnc)

	_, err := newTestNormalizer(600).Normalize(src, dst)
	require.NoError(t, err)

	alphaOut := decodeFile(t, filepath.Join(dst, "deep-alpha.png"))
	assert.IsType(t, &image.NRGBA64{}, alphaOut)
	assert.Equal(t, image.Rect(0, 0, 600, 150), alphaOut.Bounds())

	deepOut := decodeFile(t, filepath.Join(dst, "deep.png"))
	assert.IsType(t, &image.RGBA64{}, deepOut)
	assert.Equal(t, image.Rect(0, 0, 600, 150), deepOut.Bounds())
}

func TestNormalizeGIFAndBMP(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFixture(t, filepath.Join(src, "diploma.bmp"), gradient(1000, 500), bmpEnc)
	writeFixture(t, filepath.Join(src, "medal.gif"), gradient(200, 100), gifEnc)

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)

	data, err := os.ReadFile(filepath.Join(dst, "diploma.bmp"))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "bmp", format)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 400, cfg.Height)

	data, err = os.ReadFile(filepath.Join(dst, "medal.gif"))
	require.NoError(t, err)
	cfg, format, err = image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "gif", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestNormalizeSkipsUndecodableFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, "broken.png"), []byte("this is not an image at all\n"), 0644))
	writeFixture(t, filepath.Join(src, "ok.png"), gradient(100, 50), pngEnc)

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "ok.png", result.Records[0].Filename)

	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, "broken.png", failure.Filename)
	assert.Contains(t, failure.DetectedType, "text/plain")
	assert.ErrorIs(t, failure, failure.Err)
	assert.Contains(t, failure.Error(), "broken.png")

	_, err = os.Stat(filepath.Join(dst, "broken.png"))
	assert.True(t, os.IsNotExist(err), "undecodable files must not be copied")
}

func TestNormalizeFiltersEntries(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFixture(t, filepath.Join(src, "SCAN.JPG"), gradient(50, 50), jpegEnc)
	writeFixture(t, filepath.Join(src, "b.Png"), gradient(50, 50), pngEnc)
	writeFixture(t, filepath.Join(src, ".award.png"), gradient(50, 50), pngEnc)
	writeFixture(t, filepath.Join(src, ".png"), gradient(50, 50), pngEnc)
	writeFixture(t, filepath.Join(src, "scan.tiff"), gradient(50, 50), pngEnc)
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "folder.png"), 0755))

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)
	assert.Empty(t, result.Failures)

	var names []string
	for _, r := range result.Records {
		names = append(names, r.Filename)
	}
	// Byte-wise filename order
	assert.Equal(t, []string{".award.png", "SCAN.JPG", "b.Png"}, names)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFixture(t, filepath.Join(src, "a.png"), gradient(1600, 900), pngEnc)
	writeFixture(t, filepath.Join(src, "b.jpg"), gradient(1600, 900), jpegEnc)

	n := newTestNormalizer(800)

	_, err := n.Normalize(src, dst)
	require.NoError(t, err)
	first := map[string][]byte{}
	for _, name := range []string{"a.png", "b.jpg"} {
		first[name], err = os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err)
	}

	_, err = n.Normalize(src, dst)
	require.NoError(t, err)
	for name, want := range first {
		got, err := os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), "%s changed between runs", name)
	}
}

func TestNormalizeEmptySource(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "nested", "certificates")

	result, err := newTestNormalizer(800).Normalize(src, dst)
	require.NoError(t, err)
	assert.NotNil(t, result.Records)
	assert.Empty(t, result.Records)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNormalizeFilesystemErrors(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "site", "certificates")

		_, err := newTestNormalizer(800).Normalize(filepath.Join(t.TempDir(), "missing"), dst)
		var fsErr *FilesystemError
		require.True(t, errors.As(err, &fsErr))
		assert.Equal(t, "read directory", fsErr.Op)

		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr), "destination should not be created when the source is missing")
	})

	t.Run("destination blocked by a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		_, err := newTestNormalizer(800).Normalize(t.TempDir(), filepath.Join(blocker, "certificates"))
		var fsErr *FilesystemError
		require.True(t, errors.As(err, &fsErr))
		assert.Equal(t, "create directory", fsErr.Op)
	})
}
