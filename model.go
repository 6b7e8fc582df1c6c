package yolodetect

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Model is the opaque inference collaborator the detection pipelines run
// against.  It is long lived and read-only from the pipeline's perspective,
// concurrent Execute calls on the same Model must be safe.
type Model interface {
	// InputShape returns the models input tensor shape as [batch, height,
	// width, channels].  The pipeline reads height from index 1 and width
	// from index 2.
	InputShape() [4]int64
	// Execute runs inference on the given input tensor and returns the raw
	// output tensor
	Execute(input *tensor.Dense) (*tensor.Dense, error)
}

// ValidateInputShape checks the models declared input shape has a batch size
// of one and positive spatial dimensions
func ValidateInputShape(shape [4]int64) error {

	if shape[0] != 1 {
		return errors.Errorf("model batch size must be 1, got %d", shape[0])
	}

	if shape[1] <= 0 || shape[2] <= 0 {
		return errors.Errorf("model input size %dx%d is invalid",
			shape[2], shape[1])
	}

	return nil
}
