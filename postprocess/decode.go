// Package postprocess turns raw model output tensors into filtered polygon
// detections: box decoding, class score reduction, Non-Maximum Suppression
// and rotated rectangle geometry.
package postprocess

import (
	"github.com/pkg/errors"
	yolodetect "github.com/swdee/go-yolodetect"
	"gorgonia.org/tensor"
)

// Attribute offsets within a per detection record.  The models native output
// is attribute major [1, attrs, numDetections], after transposing each record
// reads [cx, cy, w, h, class_0 .. class_{K-1}] with an optional trailing
// rotation attribute for oriented models.
const (
	attrCenterX = 0
	attrCenterY = 1
	attrWidth   = 2
	attrHeight  = 3
	attrClass0  = 4
)

// record strides of the compact box layouts the decoder emits
const (
	// axis aligned records are [y1, x1, y2, x2]
	boxStride = 4
	// oriented records are [cx, cy, w, h, rotation]
	orientedStride = 5
	// rotation offset within an oriented record
	recRotation = 4
)

// ErrShapeMismatch indicates the model output tensor layout is inconsistent
// with the configured number of classes
var ErrShapeMismatch = errors.New("model output shape mismatch")

// Decoder reshapes raw model output into per detection box and class score
// records.  NumClass is fixed at construction and must match the model the
// output came from.
type Decoder struct {
	// NumClass is the number of object classes the Model was trained with
	NumClass int
}

// NewDecoder returns a Decoder for a model trained on numClass classes
func NewDecoder(numClass int) *Decoder {
	return &Decoder{
		NumClass: numClass,
	}
}

// validate asserts tensor rank and attribute count before any slicing takes
// place, returning the number of detections
func (d *Decoder) validate(out *tensor.Dense, wantAttrs int) (int, error) {

	shape := out.Shape()

	if len(shape) != 3 || shape[0] != 1 {
		return 0, errors.Wrapf(ErrShapeMismatch,
			"output tensor shape %v, want [1, %d, numDetections]",
			shape, wantAttrs)
	}

	if shape[1] != wantAttrs {
		return 0, errors.Wrapf(ErrShapeMismatch,
			"output has %d attributes per detection, want %d for %d classes",
			shape[1], wantAttrs, d.NumClass)
	}

	return shape[2], nil
}

// recordMajor transposes axes 1 and 2 of the [1, attrs, numDetections]
// output so each detection record becomes contiguous
func recordMajor(out *tensor.Dense) ([]float32, error) {

	if err := out.T(0, 2, 1); err != nil {
		return nil, errors.Wrap(err, "transposing output tensor")
	}

	// Materialize produces the reordered copy, UT restores the callers view
	transposed := out.Materialize().(*tensor.Dense)
	out.UT()

	return transposed.Data().([]float32), nil
}

// Decode splits an axis aligned model output tensor of shape
// [1, 4+NumClass, numDetections] into compact [y1, x1, y2, x2] box records
// and the raw per class score block, index aligned by detection.  Boxes are
// in model space, the y before x ordering is the convention the suppressor
// and polygon assembler expect.
func (d *Decoder) Decode(arena *yolodetect.Arena, out *tensor.Dense) (
	boxes []float32, classScores []float32, n int, err error) {

	attrs := attrClass0 + d.NumClass

	n, err = d.validate(out, attrs)

	if err != nil {
		return nil, nil, 0, err
	}

	if n == 0 {
		// no candidates is not an error
		return nil, nil, 0, nil
	}

	data, err := recordMajor(out)

	if err != nil {
		return nil, nil, 0, err
	}

	boxes = arena.Float32s("boxes", n*boxStride)

	// with NumClass == 1 the score block still has one entry per detection,
	// the detections axis is never collapsed
	classScores = arena.Float32s("classScores", n*d.NumClass)

	for i := 0; i < n; i++ {
		rec := data[i*attrs : (i+1)*attrs]

		cx := rec[attrCenterX]
		cy := rec[attrCenterY]
		w := rec[attrWidth]
		h := rec[attrHeight]

		x1 := cx - w/2
		y1 := cy - h/2

		boxes[i*boxStride+0] = y1
		boxes[i*boxStride+1] = x1
		boxes[i*boxStride+2] = y1 + h
		boxes[i*boxStride+3] = x1 + w

		copy(classScores[i*d.NumClass:(i+1)*d.NumClass],
			rec[attrClass0:attrClass0+d.NumClass])
	}

	return boxes, classScores, n, nil
}

// DecodeOriented splits an oriented model output tensor of shape
// [1, 4+NumClass+1, numDetections] into compact [cx, cy, w, h, rotation]
// records and the raw per class score block.  Rotation is the last attribute
// slot, an angle in radians which is passed through unnormalized.
func (d *Decoder) DecodeOriented(arena *yolodetect.Arena, out *tensor.Dense) (
	boxes []float32, classScores []float32, n int, err error) {

	attrs := attrClass0 + d.NumClass + 1
	attrRotation := attrs - 1

	n, err = d.validate(out, attrs)

	if err != nil {
		return nil, nil, 0, err
	}

	if n == 0 {
		return nil, nil, 0, nil
	}

	data, err := recordMajor(out)

	if err != nil {
		return nil, nil, 0, err
	}

	boxes = arena.Float32s("orientedBoxes", n*orientedStride)
	classScores = arena.Float32s("classScores", n*d.NumClass)

	for i := 0; i < n; i++ {
		rec := data[i*attrs : (i+1)*attrs]

		boxes[i*orientedStride+0] = rec[attrCenterX]
		boxes[i*orientedStride+1] = rec[attrCenterY]
		boxes[i*orientedStride+2] = rec[attrWidth]
		boxes[i*orientedStride+3] = rec[attrHeight]
		boxes[i*orientedStride+recRotation] = rec[attrRotation]

		copy(classScores[i*d.NumClass:(i+1)*d.NumClass],
			rec[attrClass0:attrClass0+d.NumClass])
	}

	return boxes, classScores, n, nil
}

// ReduceScores reduces the per class score block to a single best score and
// class index per detection.  Ties break to the first occurring class index.
// This is a pure reduction with no side effects.
func ReduceScores(arena *yolodetect.Arena, classScores []float32,
	n, numClass int) ([]float32, []int) {

	scores := arena.Float32s("scores", n)
	classes := make([]int, n)

	for i := 0; i < n; i++ {
		rec := classScores[i*numClass : (i+1)*numClass]

		best := rec[0]
		bestClass := 0

		for c := 1; c < numClass; c++ {
			if rec[c] > best {
				best = rec[c]
				bestClass = c
			}
		}

		scores[i] = best
		classes[i] = bestClass
	}

	return scores, classes
}
