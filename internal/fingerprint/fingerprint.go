package fingerprint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"

	"github.com/kozaktomas/fuzzysearch/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// hashWidth x hashHeight gradient comparisons produce the 64 hash bits.
	hashWidth  = 8
	hashHeight = 8

	// dctSize is the side of the luminance grid the DCT runs on. The gradient
	// reads hashWidth+1 columns of low-frequency coefficients from it.
	dctSize = 2 * hashWidth
)

// Fingerprint is a 64-bit perceptual image hash. Its canonical byte form is
// the big-endian encoding of the value.
type Fingerprint int64

// Bytes returns the big-endian 8-byte encoding of the fingerprint.
func (f Fingerprint) Bytes() [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(f))
	return b
}

// Uint64 returns the raw bit pattern of the fingerprint.
func (f Fingerprint) Uint64() uint64 {
	return uint64(f)
}

// String returns the decimal form used by the remote index.
func (f Fingerprint) String() string {
	return strconv.FormatInt(int64(f), 10)
}

// Hex returns the fingerprint bits as a 16 character hex string.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// FromBytes decodes a big-endian 8-byte hash.
func FromBytes(b [8]byte) Fingerprint {
	return Fingerprint(int64(binary.BigEndian.Uint64(b[:]))) //nolint:gosec // bit reinterpretation
}

// ParseFingerprint parses the decimal form of a fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", s, err)
	}
	return Fingerprint(v), nil
}

// DecodeError reports image bytes that could not be turned into a fingerprint.
type DecodeError struct {
	Cause string
	Err   error
}

func (e *DecodeError) Error() string {
	return "failed to decode image: " + e.Cause
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Compute decodes image bytes and returns their perceptual fingerprint.
// Identical input always yields the identical fingerprint.
func Compute(imageData []byte) (fp Fingerprint, err error) {
	if len(imageData) == 0 {
		return 0, &DecodeError{Cause: "empty image data"}
	}

	// Some decoders panic on truncated input instead of returning an error.
	defer func() {
		if r := recover(); r != nil {
			fp = 0
			err = &DecodeError{Cause: fmt.Sprintf("corrupt image data: %v", r)}
		}
	}()

	// Check dimensions from the header first; a tiny compressed file can
	// describe a bitmap far larger than available memory.
	cfg, _, cfgErr := image.DecodeConfig(bytes.NewReader(imageData))
	if cfgErr != nil {
		return 0, &DecodeError{Cause: cfgErr.Error(), Err: cfgErr}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > constants.MaxImagePixels {
		return 0, &DecodeError{Cause: fmt.Sprintf("image too large: %dx%d exceeds %d pixels",
			cfg.Width, cfg.Height, constants.MaxImagePixels)}
	}

	img, _, decodeErr := image.Decode(bytes.NewReader(imageData))
	if decodeErr != nil {
		return 0, &DecodeError{Cause: decodeErr.Error(), Err: decodeErr}
	}
	if img.Bounds().Empty() {
		return 0, &DecodeError{Cause: "image has no pixels"}
	}

	return FromImage(img), nil
}

// FromImage computes the fingerprint of an already decoded image.
func FromImage(img image.Image) Fingerprint {
	// 1. Resize to the DCT grid and convert to luminance
	gray := toGrayscale(resizeImage(img, dctSize, dctSize))

	// 2. DCT preprocessing
	dct := computeDCT(gray)

	// 3. Gradient over the low-frequency block: each row compares
	//    coefficient[x] with coefficient[x+1], 8 rows * 8 comparisons = 64 bits
	var hash [8]byte
	bit := 0
	for y := range hashHeight {
		for x := range hashWidth {
			if dct[x][y] < dct[x+1][y] {
				hash[bit/8] |= 1 << (7 - bit%8)
			}
			bit++
		}
	}

	return FromBytes(hash)
}

// HammingDistance computes the number of differing bits between two fingerprints.
func HammingDistance(a, b Fingerprint) uint64 {
	xor := a.Uint64() ^ b.Uint64()
	var distance uint64
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// Similar returns true if two fingerprints are within the given threshold.
func Similar(a, b Fingerprint, threshold uint64) bool {
	return HammingDistance(a, b) <= threshold
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}

	return gray
}

// computeDCT computes the 2D DCT-II of a square grayscale grid.
func computeDCT(gray [][]float64) [][]float64 {
	size := len(gray)
	dct := make([][]float64, size)
	for i := range dct {
		dct[i] = make([]float64, size)
	}

	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	for u := range size {
		for v := range size {
			var sum float64
			for x := range size {
				for y := range size {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}

	return dct
}
