// Package onnx adapts an ONNX Runtime session to the detection Model
// interface.  Models exported from ultralytics take a [1, 3, H, W] NCHW
// input named "images" and produce a single attribute major output named
// "output0", the adapter handles the NHWC to NCHW conversion so detection
// pipelines stay layout agnostic.
package onnx

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Params defines how an exported model file is loaded and executed
type Params struct {
	// ModelPath is the file path to the .onnx model file
	ModelPath string
	// InputName is the models input tensor name
	InputName string
	// OutputName is the models output tensor name
	OutputName string
	// InputHeight and InputWidth are the models input dimensions
	InputHeight int
	InputWidth  int
	// IntraOpThreads sets the thread count used within a graph node,
	// 0 uses the runtime default
	IntraOpThreads int
}

// YOLOv8Params returns Params matching the standard ultralytics ONNX
// export with a 640x640 input
func YOLOv8Params(modelPath string) Params {
	return Params{
		ModelPath:   modelPath,
		InputName:   "images",
		OutputName:  "output0",
		InputHeight: 640,
		InputWidth:  640,
	}
}

// Model wraps an ONNX Runtime session
type Model struct {
	params  Params
	session *ort.DynamicAdvancedSession
}

// LibraryPath points the runtime at the onnxruntime shared library before
// the first model is loaded
func LibraryPath(path string) {
	ort.SetSharedLibraryPath(path)
}

// NewModel loads the model file and creates a runtime session.  The ORT
// environment is initialized on first use and shared by all models, call
// Destroy on each model and ort.DestroyEnvironment when done.
func NewModel(p Params) (*Model, error) {

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initializing onnxruntime environment")
		}
	}

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}

	defer options.Destroy()

	if p.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(p.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "setting session thread count")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(p.ModelPath,
		[]string{p.InputName}, []string{p.OutputName}, options)

	if err != nil {
		return nil, errors.Wrapf(err, "loading model %s", p.ModelPath)
	}

	return &Model{
		params:  p,
		session: session,
	}, nil
}

// InputShape returns the expected input tensor dimensions in NHWC order
func (m *Model) InputShape() [4]int64 {
	return [4]int64{1, int64(m.params.InputHeight),
		int64(m.params.InputWidth), 3}
}

// Execute runs one inference pass.  The input is a [1, H, W, 3] NHWC float32
// tensor which is converted to the NCHW layout the runtime expects, the raw
// attribute major output is returned unmodified.
func (m *Model) Execute(input *tensor.Dense) (*tensor.Dense, error) {

	nchw, err := toNCHW(input)

	if err != nil {
		return nil, err
	}

	shape := input.Shape()

	inTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(shape[1]), int64(shape[2])), nchw)

	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	defer inTensor.Destroy()

	// leave the output slot nil so the runtime allocates it
	outputs := []ort.Value{nil}

	err = m.session.Run([]ort.Value{inTensor}, outputs)

	if err != nil {
		return nil, errors.Wrap(err, "running session")
	}

	outTensor, ok := outputs[0].(*ort.Tensor[float32])

	if !ok {
		return nil, errors.Errorf("unexpected output tensor type %T",
			outputs[0])
	}

	defer outTensor.Destroy()

	outShape := outTensor.GetShape()

	dims := make([]int, len(outShape))

	for i, d := range outShape {
		dims[i] = int(d)
	}

	// copy out of runtime owned memory before the tensor is destroyed
	data := make([]float32, len(outTensor.GetData()))
	copy(data, outTensor.GetData())

	return tensor.New(
		tensor.WithShape(dims...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	), nil
}

// Destroy releases the runtime session
func (m *Model) Destroy() error {
	return m.session.Destroy()
}

// toNCHW reorders a [1, H, W, C] tensor into a flat NCHW buffer
func toNCHW(input *tensor.Dense) ([]float32, error) {

	if err := input.T(0, 3, 1, 2); err != nil {
		return nil, errors.Wrap(err, "transposing input tensor")
	}

	transposed := input.Materialize().(*tensor.Dense)
	input.UT()

	return transposed.Data().([]float32), nil
}
