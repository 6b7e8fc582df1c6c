// Package detector sequences the preprocessing, inference and postprocessing
// steps into the two detection pipelines, axis aligned and oriented.  Both
// are linear single pass pipelines, every intermediate tensor is scoped to
// one detect call and released when it returns on success or failure.
package detector

import (
	"image"

	"github.com/pkg/errors"
	yolodetect "github.com/swdee/go-yolodetect"
	"github.com/swdee/go-yolodetect/postprocess"
	"github.com/swdee/go-yolodetect/preprocess"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// oriented models are exported with a fixed 640x640 input
const (
	orientedInputWidth  = 640
	orientedInputHeight = 640
)

// Sink is the rendering collaborator detections are delivered to.  Polygon i
// occupies polygons[i*8:(i+1)*8] as 4 (y,x) corner pairs and corresponds to
// scores[i] and classes[i].  For axis aligned results the coordinates are in
// model space and the sink applies the given ratios, oriented results arrive
// already in source space with unit ratios.
type Sink interface {
	Render(polygons []float32, scores []float32, classes []int,
		xRatio, yRatio float32) error
}

// Params defines the detection pipeline configuration
type Params struct {
	// ObjectClassNum is the number of different object classes the Model
	// has been trained with
	ObjectClassNum int
	// NMS are the Non-Maximum Suppression thresholds
	NMS postprocess.NMSParams
}

// YOLOv8COCOParams returns Params configured for a model trained on the
// COCO dataset:
// - Object Classes: 80
// - Score Threshold: 0.2
// - IoU Threshold: 0.45
// - Maximum Output: 500
func YOLOv8COCOParams() Params {
	return Params{
		ObjectClassNum: 80,
		NMS:            postprocess.DefaultNMSParams(),
	}
}

// OrientedDOTAv1Params returns Params configured for an oriented model
// trained on the DOTAv1 dataset with 15 object classes
func OrientedDOTAv1Params() Params {
	return Params{
		ObjectClassNum: 15,
		NMS:            postprocess.DefaultNMSParams(),
	}
}

// Detector runs the axis aligned detection pipeline.  A Detector is safe for
// concurrent detect calls against the same shared read-only Model, each call
// owns its own arena of intermediates.
type Detector struct {
	// Params are the pipeline configuration parameters
	Params Params
	// decoder splits raw output tensors into box and score records
	decoder *postprocess.Decoder
	// pool recycles intermediate buffers across detect calls
	pool *yolodetect.BufferPool
}

// NewDetector returns a Detector instance for the given parameters
func NewDetector(p Params) *Detector {
	return NewDetectorWithPool(p, yolodetect.NewBufferPool())
}

// NewDetectorWithPool returns a Detector drawing intermediate buffers from
// the given pool, so callers can share one pool across detectors or observe
// buffer accounting
func NewDetectorWithPool(p Params, pool *yolodetect.BufferPool) *Detector {
	return &Detector{
		Params:  p,
		decoder: postprocess.NewDecoder(p.ObjectClassNum),
		pool:    pool,
	}
}

// DetectObjects runs the full pipeline on a source image and delivers the
// resulting polygons to the sink.  Model space coordinates are handed over
// together with the resize ratios, the sink performs the ratio correction.
// The optional onComplete callback fires once after sink delivery and before
// intermediates are released.  Zero detections completes normally with empty
// sequences, any model or decode failure aborts the call with no partial
// delivery.
func (d *Detector) DetectObjects(img image.Image, model yolodetect.Model,
	sink Sink, onComplete func()) error {

	shape := model.InputShape()

	if err := yolodetect.ValidateInputShape(shape); err != nil {
		return err
	}

	b := img.Bounds()

	resizer := preprocess.NewSquareResizer(b.Dx(), b.Dy(),
		int(shape[2]), int(shape[1]))
	defer resizer.Close()

	arena := yolodetect.NewArena(d.pool)
	defer arena.Release()

	input, err := resizer.TensorFromImage(arena, img)

	if err != nil {
		return errors.Wrap(err, "preprocessing image")
	}

	return d.run(arena, resizer, input, model, sink, onComplete)
}

// DetectFrame is the video path of DetectObjects, it accepts a 3 channel
// gocv.Mat frame instead of an image.Image
func (d *Detector) DetectFrame(frame gocv.Mat, model yolodetect.Model,
	sink Sink, onComplete func()) error {

	shape := model.InputShape()

	if err := yolodetect.ValidateInputShape(shape); err != nil {
		return err
	}

	resizer := preprocess.NewSquareResizer(frame.Cols(), frame.Rows(),
		int(shape[2]), int(shape[1]))
	defer resizer.Close()

	arena := yolodetect.NewArena(d.pool)
	defer arena.Release()

	input, err := resizer.TensorFromMat(arena, frame)

	if err != nil {
		return errors.Wrap(err, "preprocessing frame")
	}

	return d.run(arena, resizer, input, model, sink, onComplete)
}

// run executes inference and the postprocessing chain on a prepared input
// tensor
func (d *Detector) run(arena *yolodetect.Arena, resizer *preprocess.SquareResizer,
	input *tensor.Dense, model yolodetect.Model, sink Sink,
	onComplete func()) error {

	out, err := model.Execute(input)

	if err != nil {
		return errors.Wrap(err, "model execution failed")
	}

	boxes, classScores, n, err := d.decoder.Decode(arena, out)

	if err != nil {
		return err
	}

	result := postprocess.DetectionResult{}

	if n > 0 {
		scores, classes := postprocess.ReduceScores(arena, classScores, n,
			d.Params.ObjectClassNum)

		keep := postprocess.NMS(boxes, scores, d.Params.NMS)

		result.Polygons = postprocess.AssemblePolygons(boxes, keep)
		result.Scores, result.Classes = postprocess.GatherScores(scores,
			classes, keep)
	}

	if sink != nil {
		err = sink.Render(result.FlatPolygons(), result.Scores, result.Classes,
			resizer.XRatio(), resizer.YRatio())

		if err != nil {
			return errors.Wrap(err, "delivering result to sink")
		}
	}

	if onComplete != nil {
		onComplete()
	}

	return nil
}

// OrientedDetector runs the oriented bounding box detection pipeline
type OrientedDetector struct {
	// Params are the pipeline configuration parameters
	Params Params
	// decoder splits raw output tensors into oriented box and score records
	decoder *postprocess.Decoder
	// pool recycles intermediate buffers across detect calls
	pool *yolodetect.BufferPool
}

// NewOrientedDetector returns an OrientedDetector instance for the given
// parameters
func NewOrientedDetector(p Params) *OrientedDetector {
	return NewOrientedDetectorWithPool(p, yolodetect.NewBufferPool())
}

// NewOrientedDetectorWithPool returns an OrientedDetector drawing
// intermediate buffers from the given pool
func NewOrientedDetectorWithPool(p Params,
	pool *yolodetect.BufferPool) *OrientedDetector {

	return &OrientedDetector{
		Params:  p,
		decoder: postprocess.NewDecoder(p.ObjectClassNum),
		pool:    pool,
	}
}

// DetectObjects runs the oriented pipeline on a source image.  The call has
// a dual contract, it delivers the result to the sink and also returns it,
// both channels carry the same data.  Polygons are scaled to source image
// space before assembly so the sink receives unit ratios.  A nil sink skips
// delivery when only the returned result is wanted.
func (d *OrientedDetector) DetectObjects(img image.Image,
	model yolodetect.Model, sink Sink,
	onComplete func()) (*postprocess.DetectionResult, error) {

	b := img.Bounds()

	resizer := preprocess.NewSquareResizer(b.Dx(), b.Dy(),
		orientedInputWidth, orientedInputHeight)
	defer resizer.Close()

	arena := yolodetect.NewArena(d.pool)
	defer arena.Release()

	input, err := resizer.TensorFromImage(arena, img)

	if err != nil {
		return nil, errors.Wrap(err, "preprocessing image")
	}

	return d.run(arena, resizer, input, model, sink, onComplete)
}

// DetectFrame is the video path of DetectObjects for 3 channel gocv.Mat
// frames
func (d *OrientedDetector) DetectFrame(frame gocv.Mat,
	model yolodetect.Model, sink Sink,
	onComplete func()) (*postprocess.DetectionResult, error) {

	resizer := preprocess.NewSquareResizer(frame.Cols(), frame.Rows(),
		orientedInputWidth, orientedInputHeight)
	defer resizer.Close()

	arena := yolodetect.NewArena(d.pool)
	defer arena.Release()

	input, err := resizer.TensorFromMat(arena, frame)

	if err != nil {
		return nil, errors.Wrap(err, "preprocessing frame")
	}

	return d.run(arena, resizer, input, model, sink, onComplete)
}

// run executes inference and the oriented postprocessing chain on a prepared
// input tensor
func (d *OrientedDetector) run(arena *yolodetect.Arena,
	resizer *preprocess.SquareResizer, input *tensor.Dense,
	model yolodetect.Model, sink Sink,
	onComplete func()) (*postprocess.DetectionResult, error) {

	out, err := model.Execute(input)

	if err != nil {
		return nil, errors.Wrap(err, "model execution failed")
	}

	boxes5, classScores, n, err := d.decoder.DecodeOriented(arena, out)

	if err != nil {
		return nil, err
	}

	result := &postprocess.DetectionResult{}

	if n > 0 {
		scores, classes := postprocess.ReduceScores(arena, classScores, n,
			d.Params.ObjectClassNum)

		keep := postprocess.NMSOriented(arena, boxes5, scores, d.Params.NMS)

		result.Polygons = postprocess.AssembleOrientedPolygons(boxes5, keep,
			resizer.XRatio(), resizer.YRatio())
		result.Scores, result.Classes = postprocess.GatherScores(scores,
			classes, keep)
	}

	if sink != nil {
		// polygons are already in source space
		err = sink.Render(result.FlatPolygons(), result.Scores,
			result.Classes, 1.0, 1.0)

		if err != nil {
			return nil, errors.Wrap(err, "delivering result to sink")
		}
	}

	if onComplete != nil {
		onComplete()
	}

	return result, nil
}
