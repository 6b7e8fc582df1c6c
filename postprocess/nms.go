package postprocess

import (
	"sort"

	"github.com/chewxy/math32"
	yolodetect "github.com/swdee/go-yolodetect"
)

// NMSParams defines the thresholds used during Non-Maximum Suppression
type NMSParams struct {
	// ScoreThreshold is the minimum confidence score required for a
	// candidate to be considered at all
	ScoreThreshold float32
	// IoUThreshold is the maximum allowed Intersection Over Union between
	// two boxes for both to be kept, a strictly greater overlap suppresses
	// the lower scored box
	IoUThreshold float32
	// MaxOutput is the maximum number of surviving detections returned, a
	// zero or negative cap keeps none
	MaxOutput int
	// PreciseOverlap switches the oriented suppressor from the axis aligned
	// surrogate overlap to true rotated polygon overlap
	PreciseOverlap bool
}

// DefaultNMSParams returns the standard suppression thresholds:
// - Score Threshold: 0.2
// - IoU Threshold: 0.45
// - Maximum Output: 500
func DefaultNMSParams() NMSParams {
	return NMSParams{
		ScoreThreshold: 0.2,
		IoUThreshold:   0.45,
		MaxOutput:      500,
	}
}

// IoU calculates the Intersection over Union value of two axis aligned
// boxes given as [y1, x1, y2, x2] records
func IoU(a, b []float32) float32 {

	y1 := math32.Max(a[0], b[0])
	x1 := math32.Max(a[1], b[1])
	y2 := math32.Min(a[2], b[2])
	x2 := math32.Min(a[3], b[3])

	intersection := math32.Max(0, y2-y1) * math32.Max(0, x2-x1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])

	union := areaA + areaB - intersection

	if union <= 0 {
		return 0.0
	}

	return intersection / union
}

// NMS implements greedy Non-Maximum Suppression over axis aligned
// [y1, x1, y2, x2] boxes.  Candidates below the score threshold are
// discarded, the remainder are visited in score descending order (ties by
// ascending index so results are deterministic) and any unselected candidate
// whose IoU with a selected box exceeds the threshold is suppressed.  The
// returned surviving indices are score descending and truncated to
// MaxOutput.  Zero candidates yields an empty result.
func NMS(boxes, scores []float32, p NMSParams) []int {

	if p.MaxOutput <= 0 {
		return nil
	}

	n := len(scores)

	order := make([]int, 0, n)

	for i := 0; i < n; i++ {
		if scores[i] >= p.ScoreThreshold {
			order = append(order, i)
		}
	}

	// stable sort keeps equal scores in index order
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	keep := make([]int, 0, len(order))
	suppressed := make([]bool, n)

	for a := 0; a < len(order); a++ {
		i := order[a]

		if suppressed[i] {
			continue
		}

		keep = append(keep, i)

		if len(keep) >= p.MaxOutput {
			break
		}

		for b := a + 1; b < len(order); b++ {
			j := order[b]

			if suppressed[j] {
				continue
			}

			if IoU(boxes[i*boxStride:(i+1)*boxStride],
				boxes[j*boxStride:(j+1)*boxStride]) > p.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}

// SurrogateBoxes builds the axis aligned suppressor input from oriented
// [cx, cy, w, h, rotation] records by reinterpreting the first four
// attributes verbatim as box coordinates.  This mirrors how the plain
// suppressor is fed by oriented detectors and is deliberately not a true
// bounding box of the rotated shape, see NMSParams.PreciseOverlap for the
// exact alternative.
func SurrogateBoxes(arena *yolodetect.Arena, boxes5 []float32, n int) []float32 {

	out := arena.Float32s("surrogate", n*boxStride)

	for i := 0; i < n; i++ {
		copy(out[i*boxStride:(i+1)*boxStride],
			boxes5[i*orientedStride:i*orientedStride+boxStride])
	}

	return out
}

// NMSOriented suppresses oriented [cx, cy, w, h, rotation] records.  By
// default overlap is measured on the axis aligned surrogate of the first
// four attributes, with PreciseOverlap set it uses true rotated polygon
// intersection instead.
func NMSOriented(arena *yolodetect.Arena, boxes5, scores []float32,
	p NMSParams) []int {

	if p.MaxOutput <= 0 {
		return nil
	}

	n := len(scores)

	if !p.PreciseOverlap {
		return NMS(SurrogateBoxes(arena, boxes5, n), scores, p)
	}

	order := make([]int, 0, n)

	for i := 0; i < n; i++ {
		if scores[i] >= p.ScoreThreshold {
			order = append(order, i)
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	keep := make([]int, 0, len(order))
	suppressed := make([]bool, n)

	for a := 0; a < len(order); a++ {
		i := order[a]

		if suppressed[i] {
			continue
		}

		keep = append(keep, i)

		if len(keep) >= p.MaxOutput {
			break
		}

		for b := a + 1; b < len(order); b++ {
			j := order[b]

			if suppressed[j] {
				continue
			}

			if RotatedIoU(boxes5[i*orientedStride:(i+1)*orientedStride],
				boxes5[j*orientedStride:(j+1)*orientedStride]) > p.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}
