package preprocess

import (
	"image"
	"image/color"
	"math"
	"testing"

	yolodetect "github.com/swdee/go-yolodetect"
)

func TestRatios(t *testing.T) {

	tests := []struct {
		srcWidth  int
		srcHeight int
		xRatio    float32
		yRatio    float32
	}{
		{1280, 720, 1.0, 1280.0 / 720.0},
		{720, 1280, 1280.0 / 720.0, 1.0},
		{800, 800, 1.0, 1.0},
		{100, 50, 1.0, 2.0},
	}

	for _, tc := range tests {
		resizer := NewSquareResizer(tc.srcWidth, tc.srcHeight, 640, 640)

		if resizer.XRatio() != tc.xRatio || resizer.YRatio() != tc.yRatio {
			t.Errorf("Test failed for src (%d, %d): expected xRatio=%f, yRatio=%f, got xRatio=%f, yRatio=%f",
				tc.srcWidth, tc.srcHeight, tc.xRatio, tc.yRatio,
				resizer.XRatio(), resizer.YRatio())
		}

		// both ratios scale back to the padded square side
		maxSize := float64(max(tc.srcWidth, tc.srcHeight))

		xSide := float64(resizer.XRatio()) * float64(tc.srcWidth)
		ySide := float64(resizer.YRatio()) * float64(tc.srcHeight)

		if math.Abs(xSide-maxSize) > 1e-3 || math.Abs(ySide-maxSize) > 1e-3 {
			t.Errorf("Test failed for src (%d, %d): ratios do not invert to square side %f, got %f and %f",
				tc.srcWidth, tc.srcHeight, maxSize, xSide, ySide)
		}

		resizer.Close()
	}
}

func TestSquarePadInvariant(t *testing.T) {

	// 3x2 image with distinct pixel values
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))

	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			src.SetNRGBA(x, y, color.NRGBA{
				R: uint8(10 + x), G: uint8(20 + y), B: uint8(30 + x + y), A: 255,
			})
		}
	}

	resizer := NewSquareResizer(3, 2, 640, 640)
	defer resizer.Close()

	padded := resizer.SquarePad(src)

	if padded.Bounds().Dx() != 3 || padded.Bounds().Dy() != 3 {
		t.Fatalf("padded size = %dx%d, want 3x3",
			padded.Bounds().Dx(), padded.Bounds().Dy())
	}

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			got := padded.NRGBAAt(x, y)

			if x < 3 && y < 2 {
				want := src.NRGBAAt(x, y)

				if got.R != want.R || got.G != want.G || got.B != want.B {
					t.Errorf("pixel (%d,%d) = %v, want original %v", x, y, got, want)
				}

				continue
			}

			// padding region must be zero valued
			if got.R != 0 || got.G != 0 || got.B != 0 {
				t.Errorf("padding pixel (%d,%d) = %v, want zero", x, y, got)
			}
		}
	}
}

func TestTensorFromImage(t *testing.T) {

	// uniform white square avoids any resize interpolation effects
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	resizer := NewSquareResizer(4, 4, 2, 2)
	defer resizer.Close()

	arena := yolodetect.NewArena(nil)
	defer arena.Release()

	input, err := resizer.TensorFromImage(arena, src)

	if err != nil {
		t.Fatalf("TensorFromImage failed: %v", err)
	}

	shape := input.Shape()

	if len(shape) != 4 || shape[0] != 1 || shape[1] != 2 || shape[2] != 2 || shape[3] != 3 {
		t.Fatalf("tensor shape = %v, want [1 2 2 3]", shape)
	}

	for i, v := range input.Data().([]float32) {
		if v != 1.0 {
			t.Errorf("normalized value at %d = %f, want 1.0", i, v)
		}
	}
}

func TestTensorFromImageSizeMismatch(t *testing.T) {

	src := image.NewNRGBA(image.Rect(0, 0, 8, 8))

	resizer := NewSquareResizer(4, 4, 2, 2)
	defer resizer.Close()

	arena := yolodetect.NewArena(nil)
	defer arena.Release()

	if _, err := resizer.TensorFromImage(arena, src); err == nil {
		t.Errorf("expected error for mismatched source size")
	}
}
