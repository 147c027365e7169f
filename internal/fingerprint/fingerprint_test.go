package fingerprint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected uint64
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"one bit different", 0x1, 0x0, 1},
		{"four bits different", 0xF, 0x0, 4},
		{"half different", 0xFFFFFFFF00000000, 0x0, 32},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
		{"sign bit", 0x8000000000000000, 0x0, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Fingerprint(int64(tc.hash1)) //nolint:gosec // test bit patterns
			b := Fingerprint(int64(tc.hash2)) //nolint:gosec // test bit patterns
			result := HammingDistance(a, b)
			if result != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d",
					tc.hash1, tc.hash2, result, tc.expected)
			}
		})
	}
}

func TestHammingDistanceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Fingerprint(rapid.Int64().Draw(t, "a"))
		b := Fingerprint(rapid.Int64().Draw(t, "b"))

		if d := HammingDistance(a, a); d != 0 {
			t.Fatalf("distance(a, a) = %d; want 0", d)
		}
		ab := HammingDistance(a, b)
		if ba := HammingDistance(b, a); ab != ba {
			t.Fatalf("distance not symmetric: %d vs %d", ab, ba)
		}
		if ab > 64 {
			t.Fatalf("distance %d out of range", ab)
		}
	})
}

func TestSimilar(t *testing.T) {
	tests := []struct {
		name      string
		hash1     Fingerprint
		hash2     Fingerprint
		threshold uint64
		expected  bool
	}{
		{"identical with threshold 0", 0x0, 0x0, 0, true},
		{"3 bits different, threshold 3", 0x0, 0x7, 3, true},
		{"4 bits different, threshold 3", 0x0, 0xF, 3, false},
		{"completely different, threshold 10", -1, 0x0, 10, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Similar(tc.hash1, tc.hash2, tc.threshold)
			if result != tc.expected {
				t.Errorf("Similar(%x, %x, %d) = %v; want %v",
					tc.hash1, tc.hash2, tc.threshold, result, tc.expected)
			}
		})
	}
}

func TestFingerprintBytes(t *testing.T) {
	fp := Fingerprint(0x0102030405060708)
	got := fp.Bytes()
	want := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	if got != want {
		t.Errorf("Bytes() = %v; want %v", got, want)
	}

	neg := Fingerprint(-42)
	if back := FromBytes(neg.Bytes()); back != neg {
		t.Errorf("FromBytes(Bytes()) = %d; want %d", back, neg)
	}
	if neg.String() != "-42" {
		t.Errorf("String() = %s; want -42", neg.String())
	}
	if Fingerprint(255).Hex() != "00000000000000ff" {
		t.Errorf("Hex() = %s", Fingerprint(255).Hex())
	}
}

func TestParseFingerprint(t *testing.T) {
	fp, err := ParseFingerprint("-9223372036854775808")
	if err != nil {
		t.Fatalf("ParseFingerprint failed: %v", err)
	}
	if fp.Uint64() != 0x8000000000000000 {
		t.Errorf("expected sign bit only, got %x", fp.Uint64())
	}

	if _, err := ParseFingerprint("abc"); err == nil {
		t.Error("ParseFingerprint should fail for non-numeric input")
	}
}

func loadTestImage(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load test image %s: %v", name, err)
	}
	return data
}

func TestCompute(t *testing.T) {
	formats := map[string][]byte{
		"jpeg":          encodeJPEG(createTestImage(100, 100, color.White)),
		"png":           encodePNG(createTestImage(100, 100, color.RGBA{200, 40, 40, 255})),
		"webp lossy":    loadTestImage(t, "blue-purple-pink.lossy.webp"),
		"webp lossless": loadTestImage(t, "blue-purple-pink.lossless.webp"),
	}

	for name, data := range formats {
		t.Run(name, func(t *testing.T) {
			if _, err := Compute(data); err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
		})
	}
}

func TestComputeConsistency(t *testing.T) {
	// Same bytes should always produce the same fingerprint
	imgData := encodePNG(createTestImage(100, 100, color.RGBA{128, 128, 128, 255}))

	first, err := Compute(imgData)
	if err != nil {
		t.Fatalf("first Compute failed: %v", err)
	}

	for i := range 5 {
		again, err := Compute(imgData)
		if err != nil {
			t.Fatalf("Compute %d failed: %v", i, err)
		}
		if again != first {
			t.Errorf("fingerprint should be consistent: %d vs %d", first, again)
		}
	}
}

func TestComputeConsistencyWebP(t *testing.T) {
	data := loadTestImage(t, "blue-purple-pink.lossy.webp")

	first, err := Compute(data)
	if err != nil {
		t.Fatalf("first Compute failed: %v", err)
	}
	for i := range 3 {
		again, err := Compute(data)
		if err != nil {
			t.Fatalf("Compute %d failed: %v", i, err)
		}
		if again != first {
			t.Errorf("fingerprint should be consistent: %d vs %d", first, again)
		}
	}
}

func TestComputeSamePixelsAcrossFormats(t *testing.T) {
	fromPNG, err := Compute(loadTestImage(t, "blue-purple-pink.png"))
	if err != nil {
		t.Fatalf("Compute png failed: %v", err)
	}
	fromWebP, err := Compute(loadTestImage(t, "blue-purple-pink.lossless.webp"))
	if err != nil {
		t.Fatalf("Compute webp failed: %v", err)
	}

	if d := HammingDistance(fromPNG, fromWebP); d > 3 {
		t.Errorf("lossless webp and png of the same picture differ by %d bits", d)
	}
}

// pngWithHeaderSize encodes a tiny PNG and rewrites its IHDR dimensions, so
// the header claims a bitmap that would never be allocated in a test.
func pngWithHeaderSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := encodePNG(createTestImage(1, 1, color.White))
	// 8-byte signature, 4-byte length, "IHDR", then width and height.
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	// The chunk CRC covers the type and the 13 data bytes.
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestComputeRejectsOversizedImage(t *testing.T) {
	_, err := Compute(pngWithHeaderSize(t, 16000, 16000))
	if !IsDecodeError(err) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("unexpected error message: %v", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(pngWithHeaderSize(t, 16000, 16000)))
	if err != nil || cfg.Width != 16000 {
		t.Errorf("header rewrite produced an unreadable PNG: %v", err)
	}
}

func TestComputeGradient(t *testing.T) {
	imgData := encodePNG(createGradientImage(100, 100))

	fp, err := Compute(imgData)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	// A horizontal brightness ramp gives a strongly negative first AC
	// coefficient, so the second gradient bit of the first row is set.
	if fp.Bytes()[0]&0x40 == 0 {
		t.Errorf("expected gradient bit to be set, got %064b", fp.Uint64())
	}
}

func TestComputeInvalidImage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not an image")},
		{"truncated png", encodePNG(createTestImage(10, 10, color.Black))[:20]},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(tc.data)
			if err == nil {
				t.Fatal("Compute should fail for invalid image data")
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if de.Cause == "" {
				t.Error("DecodeError should carry a cause")
			}
			if !IsDecodeError(err) {
				t.Error("IsDecodeError should be true")
			}
		})
	}
}

func TestResizeImage(t *testing.T) {
	img := createTestImage(100, 100, color.White)

	resized := resizeImage(img, dctSize, dctSize)

	bounds := resized.Bounds()
	if bounds.Dx() != dctSize || bounds.Dy() != dctSize {
		t.Errorf("resized image should be %dx%d, got %dx%d", dctSize, dctSize, bounds.Dx(), bounds.Dy())
	}
}

func TestToGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := range 10 {
		for y := range 10 {
			img.Set(x, y, color.RGBA{255, 0, 0, 255}) // Red
		}
	}

	gray := toGrayscale(img)

	if len(gray) != 10 {
		t.Errorf("grayscale width should be 10, got %d", len(gray))
	}
	if len(gray[0]) != 10 {
		t.Errorf("grayscale height should be 10, got %d", len(gray[0]))
	}

	// Red should convert to approximately 0.299 * 255 = 76.245
	expectedLuma := 0.299 * 255
	tolerance := 1.0
	if gray[0][0] < expectedLuma-tolerance || gray[0][0] > expectedLuma+tolerance {
		t.Errorf("red pixel luma should be ~%.2f, got %.2f", expectedLuma, gray[0][0])
	}
}

func TestComputeDCTConstantGrid(t *testing.T) {
	gray := make([][]float64, 4)
	for x := range gray {
		gray[x] = []float64{10, 10, 10, 10}
	}

	dct := computeDCT(gray)

	if dct[0][0] != 160 {
		t.Errorf("DC coefficient = %f; want 160", dct[0][0])
	}
	for u := range 4 {
		for v := range 4 {
			if u == 0 && v == 0 {
				continue
			}
			if dct[u][v] > 1e-9 || dct[u][v] < -1e-9 {
				t.Errorf("AC coefficient [%d][%d] = %g; want ~0", u, v, dct[u][v])
			}
		}
	}
}

// Helper functions

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			img.Set(x, y, c)
		}
	}
	return img
}

func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := range width {
		for y := range height {
			gray := uint8(x * 255 / width) //nolint:gosec // bounded by 255
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	return img
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}
