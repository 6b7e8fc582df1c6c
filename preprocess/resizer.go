// Package preprocess converts source images and video frames into the
// normalized input tensors a detection model expects, tracking the scale
// ratios needed to map model space coordinates back to source image space.
package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	yolodetect "github.com/swdee/go-yolodetect"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"gorgonia.org/tensor"
)

// SquareResizer pads a source image to a square and resizes it to the model
// input dimensions.  Padding is applied on the bottom and right edges only
// so the origin keeps its meaning for the inverse mapping, consumers
// multiply model space coordinates by XRatio/YRatio to recover source space
// coordinates.
type SquareResizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the model input width to scale to
	destWidth int
	// destHeight is the model input height to scale to
	destHeight int
	// maxSize is the padded square side, max(srcWidth, srcHeight)
	maxSize int
	// ratios mapping model space back to source space, always >= 1.0
	xRatio float32
	yRatio float32
	// temp Mats used during the Mat resize path
	padMat    gocv.Mat
	resizeMat gocv.Mat
}

// NewSquareResizer returns a resizer for scaling a source of the given
// dimensions to the needed model input tensor size
func NewSquareResizer(srcWidth, srcHeight, destWidth, destHeight int) *SquareResizer {

	r := &SquareResizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		padMat:     gocv.NewMat(),
		resizeMat:  gocv.NewMat(),
	}

	// precalculate the square side and inverse mapping ratios
	r.maxSize = srcWidth

	if srcHeight > srcWidth {
		r.maxSize = srcHeight
	}

	r.xRatio = float32(r.maxSize) / float32(srcWidth)
	r.yRatio = float32(r.maxSize) / float32(srcHeight)

	return r
}

// Close frees memory allocated during the resize process
func (r *SquareResizer) Close() error {

	if err := r.padMat.Close(); err != nil {
		return err
	}

	return r.resizeMat.Close()
}

// SquarePad pads the image on the bottom and right with zero value pixels to
// reach a maxSize square.  The top left region equals the original image.
func (r *SquareResizer) SquarePad(img image.Image) *image.NRGBA {

	canvas := imaging.New(r.maxSize, r.maxSize, color.NRGBA{})

	return imaging.Paste(canvas, img, image.Pt(0, 0))
}

// TensorFromImage produces the [1, destHeight, destWidth, 3] float32 input
// tensor for the given source image, pixel values normalized to [0,1].  The
// tensor backing buffer is scoped to the arena.
func (r *SquareResizer) TensorFromImage(arena *yolodetect.Arena,
	img image.Image) (*tensor.Dense, error) {

	b := img.Bounds()

	if b.Dx() != r.srcWidth || b.Dy() != r.srcHeight {
		return nil, errors.Errorf("image size %dx%d does not match resizer "+
			"source size %dx%d", b.Dx(), b.Dy(), r.srcWidth, r.srcHeight)
	}

	padded := r.SquarePad(img)

	scaled := image.NewNRGBA(image.Rect(0, 0, r.destWidth, r.destHeight))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), padded, padded.Bounds(),
		draw.Src, nil)

	buf := arena.Float32s("input", r.destHeight*r.destWidth*3)

	i := 0

	for y := 0; y < r.destHeight; y++ {
		row := scaled.Pix[y*scaled.Stride:]

		for x := 0; x < r.destWidth; x++ {
			px := row[x*4:]
			buf[i] = float32(px[0]) / 255.0
			buf[i+1] = float32(px[1]) / 255.0
			buf[i+2] = float32(px[2]) / 255.0
			i += 3
		}
	}

	return tensor.New(
		tensor.WithShape(1, r.destHeight, r.destWidth, 3),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(buf),
	), nil
}

// TensorFromMat is the video frame path, it produces the same normalized
// input tensor from a 3 channel gocv.Mat.  Channel order follows the Mat,
// typically BGR for frames decoded with gocv.
func (r *SquareResizer) TensorFromMat(arena *yolodetect.Arena,
	mat gocv.Mat) (*tensor.Dense, error) {

	if mat.Cols() != r.srcWidth || mat.Rows() != r.srcHeight {
		return nil, errors.Errorf("frame size %dx%d does not match resizer "+
			"source size %dx%d", mat.Cols(), mat.Rows(), r.srcWidth, r.srcHeight)
	}

	if mat.Channels() != 3 {
		return nil, errors.Errorf("frame must have 3 channels, got %d",
			mat.Channels())
	}

	// pad bottom and right only
	gocv.CopyMakeBorder(mat, &r.padMat,
		0, r.maxSize-r.srcHeight, 0, r.maxSize-r.srcWidth,
		gocv.BorderConstant, color.RGBA{})

	gocv.Resize(r.padMat, &r.resizeMat,
		image.Pt(r.destWidth, r.destHeight), 0, 0, gocv.InterpolationLinear)

	data, err := r.resizeMat.DataPtrUint8()

	if err != nil {
		return nil, errors.Wrap(err, "error getting data pointer to Mat")
	}

	buf := arena.Float32s("input", r.destHeight*r.destWidth*3)

	for i, v := range data[:len(buf)] {
		buf[i] = float32(v) / 255.0
	}

	return tensor.New(
		tensor.WithShape(1, r.destHeight, r.destWidth, 3),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(buf),
	), nil
}

// XRatio returns the ratio mapping model space x coordinates back to source
// image space
func (r *SquareResizer) XRatio() float32 {
	return r.xRatio
}

// YRatio returns the ratio mapping model space y coordinates back to source
// image space
func (r *SquareResizer) YRatio() float32 {
	return r.yRatio
}

// SrcWidth returns the width of the source image
func (r *SquareResizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *SquareResizer) SrcHeight() int {
	return r.srcHeight
}
