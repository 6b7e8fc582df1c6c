package detector

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yolodetect "github.com/swdee/go-yolodetect"
	"gorgonia.org/tensor"
)

// fakeModel returns a canned attribute major output tensor and records the
// input it was executed with
type fakeModel struct {
	inputShape [4]int64
	outShape   []int
	outData    []float32
	execErr    error
	gotInput   *tensor.Dense
}

func (m *fakeModel) InputShape() [4]int64 {
	return m.inputShape
}

func (m *fakeModel) Execute(input *tensor.Dense) (*tensor.Dense, error) {

	m.gotInput = input

	if m.execErr != nil {
		return nil, m.execErr
	}

	return tensor.New(
		tensor.WithShape(m.outShape...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(m.outData),
	), nil
}

// captureSink records the Render call it receives
type captureSink struct {
	called    bool
	polygons  []float32
	scores    []float32
	classes   []int
	xRatio    float32
	yRatio    float32
	renderErr error
}

func (s *captureSink) Render(polygons []float32, scores []float32,
	classes []int, xRatio, yRatio float32) error {

	s.called = true
	s.polygons = polygons
	s.scores = scores
	s.classes = classes
	s.xRatio = xRatio
	s.yRatio = yRatio

	return s.renderErr
}

// testImage returns a uniform gray source image of the given size
func testImage(w, h int) image.Image {

	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for i := range img.Pix {
		img.Pix[i] = 128
	}

	return img
}

func TestDetectObjectsEndToEnd(t *testing.T) {

	// one candidate at model space center (50,25), size 20x10, a single
	// class scoring 0.9.  attribute major layout [1, 5, 1].
	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.9},
	}

	sink := &captureSink{}

	d := NewDetector(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	})

	err := d.DetectObjects(testImage(100, 50), model, sink, nil)
	require.NoError(t, err)

	require.True(t, sink.called)

	// model space corners as (y,x) pairs, the sink owns the ratio correction
	assert.Equal(t, []float32{20, 40, 20, 60, 30, 60, 30, 40}, sink.polygons)
	assert.Equal(t, []float32{0.9}, sink.scores)
	assert.Equal(t, []int{0}, sink.classes)

	// 100x50 source pads to a 100 square, so only y is stretched
	assert.Equal(t, float32(1.0), sink.xRatio)
	assert.Equal(t, float32(2.0), sink.yRatio)

	// the model saw a normalized NHWC tensor of its declared size
	require.NotNil(t, model.gotInput)
	assert.Equal(t, []int{1, 640, 640, 3}, []int(model.gotInput.Shape()))
}

func TestDetectObjectsNoDetections(t *testing.T) {

	// the single candidate scores below the keep threshold
	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.1},
	}

	sink := &captureSink{}
	completed := false

	d := NewDetector(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	})

	err := d.DetectObjects(testImage(64, 64), model, sink,
		func() { completed = true })
	require.NoError(t, err)

	// an empty result still completes the full delivery path
	require.True(t, sink.called)
	assert.Empty(t, sink.polygons)
	assert.Empty(t, sink.scores)
	assert.Empty(t, sink.classes)
	assert.True(t, completed)
}

func TestDetectObjectsCompletionOrder(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 320, 320, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.9},
	}

	var order []string

	sink := &captureSink{}

	d := NewDetector(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	})

	wrapped := sinkFunc(func(p []float32, s []float32, c []int,
		xr, yr float32) error {
		order = append(order, "render")
		return sink.Render(p, s, c, xr, yr)
	})

	err := d.DetectObjects(testImage(80, 80), model, wrapped,
		func() { order = append(order, "complete") })
	require.NoError(t, err)

	assert.Equal(t, []string{"render", "complete"}, order)
}

// sinkFunc adapts a function to the Sink interface
type sinkFunc func(polygons []float32, scores []float32, classes []int,
	xRatio, yRatio float32) error

func (f sinkFunc) Render(polygons []float32, scores []float32, classes []int,
	xRatio, yRatio float32) error {
	return f(polygons, scores, classes, xRatio, yRatio)
}

func TestDetectObjectsModelError(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		execErr:    errors.New("device lost"),
	}

	sink := &captureSink{}
	completed := false

	d := NewDetector(YOLOv8COCOParams())

	err := d.DetectObjects(testImage(32, 32), model, sink,
		func() { completed = true })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model execution failed")

	// nothing is delivered on the failure path
	assert.False(t, sink.called)
	assert.False(t, completed)
}

func TestDetectObjectsSinkError(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.9},
	}

	sink := &captureSink{renderErr: errors.New("display gone")}
	completed := false

	d := NewDetector(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	})

	err := d.DetectObjects(testImage(32, 32), model, sink,
		func() { completed = true })

	require.Error(t, err)
	assert.False(t, completed)
}

func TestDetectObjectsRejectsBatchedModel(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{4, 640, 640, 3},
	}

	d := NewDetector(YOLOv8COCOParams())

	err := d.DetectObjects(testImage(32, 32), model, &captureSink{}, nil)

	require.Error(t, err)
	assert.Nil(t, model.gotInput)
}

func TestDetectObjectsReleasesBuffersOnModelError(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		execErr:    errors.New("device lost"),
	}

	pool := yolodetect.NewBufferPool()

	d := NewDetectorWithPool(YOLOv8COCOParams(), pool)

	err := d.DetectObjects(testImage(32, 32), model, &captureSink{}, nil)
	require.Error(t, err)

	// the input buffer drawn during preprocessing must be back in the pool
	assert.Equal(t, 0, pool.Outstanding())
}

func TestDetectObjectsReleasesBuffersOnSinkError(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.9},
	}

	pool := yolodetect.NewBufferPool()

	d := NewDetectorWithPool(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	}, pool)

	sink := &captureSink{renderErr: errors.New("display gone")}

	err := d.DetectObjects(testImage(32, 32), model, sink, nil)
	require.Error(t, err)

	// every intermediate of the full chain is returned on the failure path
	assert.Equal(t, 0, pool.Outstanding())
}

func TestDetectObjectsReleasesBuffersOnSuccess(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 5, 1},
		outData:    []float32{50, 25, 20, 10, 0.9},
	}

	pool := yolodetect.NewBufferPool()

	d := NewDetectorWithPool(Params{
		ObjectClassNum: 1,
		NMS:            YOLOv8COCOParams().NMS,
	}, pool)

	err := d.DetectObjects(testImage(100, 50), model, &captureSink{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, pool.Outstanding())
}

func TestOrientedDetectReleasesBuffersOnModelError(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		execErr:    errors.New("device lost"),
	}

	pool := yolodetect.NewBufferPool()

	d := NewOrientedDetectorWithPool(OrientedDOTAv1Params(), pool)

	_, err := d.DetectObjects(testImage(32, 32), model, &captureSink{}, nil)
	require.Error(t, err)

	assert.Equal(t, 0, pool.Outstanding())
}

func TestOrientedDetectDualContract(t *testing.T) {

	// oriented layout [cx, cy, w, h, class_0, rotation] attribute major,
	// one unrotated candidate
	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 6, 1},
		outData:    []float32{50, 25, 20, 10, 0.9, 0},
	}

	sink := &captureSink{}

	d := NewOrientedDetector(Params{
		ObjectClassNum: 1,
		NMS:            OrientedDOTAv1Params().NMS,
	})

	result, err := d.DetectObjects(testImage(100, 50), model, sink, nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	// 100x50 source, y axis stretches by 2: center (50,25) maps to (50,50)
	// and the height doubles, corners as (y,x) pairs
	want := []float32{40, 40, 40, 60, 60, 60, 60, 40}

	require.Len(t, result.Polygons, 1)
	assert.InDeltaSlice(t, want, result.Polygons[0][:], 1e-4)

	// the sink receives the same data already in source space
	require.True(t, sink.called)
	assert.InDeltaSlice(t, want, sink.polygons, 1e-4)
	assert.Equal(t, float32(1.0), sink.xRatio)
	assert.Equal(t, float32(1.0), sink.yRatio)

	assert.Equal(t, []float32{0.9}, result.Scores)
	assert.Equal(t, []int{0}, result.Classes)
}

func TestOrientedDetectNilSink(t *testing.T) {

	model := &fakeModel{
		inputShape: [4]int64{1, 640, 640, 3},
		outShape:   []int{1, 6, 1},
		outData:    []float32{50, 25, 20, 10, 0.9, 0},
	}

	d := NewOrientedDetector(Params{
		ObjectClassNum: 1,
		NMS:            OrientedDOTAv1Params().NMS,
	})

	result, err := d.DetectObjects(testImage(100, 100), model, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Polygons, 1)
}
