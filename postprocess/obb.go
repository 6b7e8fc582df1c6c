package postprocess

import (
	"github.com/chewxy/math32"
)

// cornerOffsets enumerates the half extent corner offsets of an unrotated
// box in the fixed order (-w/2,-h/2), (w/2,-h/2), (w/2,h/2), (-w/2,h/2).
// The polygon assembler and rotated overlap rely on this order.
var cornerOffsets = [4][2]float32{
	{-0.5, -0.5},
	{0.5, -0.5},
	{0.5, 0.5},
	{-0.5, 0.5},
}

// RotatedCorners computes the 4 corner points of a rotated rectangle given
// its center, size and rotation angle in radians.  Corners are returned as
// (x, y) pairs in the cornerOffsets enumeration order.  The angle is not
// normalized, callers guarantee it lies within the models trained range.
func RotatedCorners(cx, cy, w, h, angle float32) [8]float32 {

	cosA := math32.Cos(angle)
	sinA := math32.Sin(angle)

	var corners [8]float32

	for i, off := range cornerOffsets {
		dx := off[0] * w
		dy := off[1] * h

		corners[2*i] = cx + dx*cosA - dy*sinA
		corners[2*i+1] = cy + dx*sinA + dy*cosA
	}

	return corners
}
