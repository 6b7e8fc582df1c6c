package postprocess

import (
	"math"

	clipper "github.com/ctessum/go.clipper"
)

// clipperScale maps float coordinates onto the integer grid clipper
// operates on, model coordinates are sub pixel so a 1/1024 quantum is
// well below any meaningful overlap difference
const clipperScale = 1024

// toClipperPath converts an oriented [cx, cy, w, h, rotation] record into a
// closed integer polygon path
func toClipperPath(box []float32) clipper.Path {

	corners := RotatedCorners(box[0], box[1], box[2], box[3], box[recRotation])

	path := make(clipper.Path, 0, 4)

	for i := 0; i < 4; i++ {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(float64(corners[2*i]) * clipperScale),
			Y: clipper.CInt(float64(corners[2*i+1]) * clipperScale),
		})
	}

	return path
}

// pathArea calculates the area of a closed path using the shoelace formula
func pathArea(p clipper.Path) float64 {

	n := len(p)
	area := 0.0

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		area += float64(p[i].X)*float64(p[j].Y) - float64(p[j].X)*float64(p[i].Y)
	}

	return math.Abs(area / 2.0)
}

// RotatedIoU calculates the Intersection over Union between two rotated
// boxes given as [cx, cy, w, h, rotation] records by clipping their corner
// polygons against each other
func RotatedIoU(a, b []float32) float32 {

	c := clipper.NewClipper(clipper.IoNone)
	c.AddPath(toClipperPath(a), clipper.PtSubject, true)
	c.AddPath(toClipperPath(b), clipper.PtClip, true)

	solution, ok := c.Execute1(clipper.CtIntersection,
		clipper.PftNonZero, clipper.PftNonZero)

	if !ok || len(solution) == 0 {
		return 0.0
	}

	intersection := 0.0

	for _, path := range solution {
		intersection += pathArea(path)
	}

	areaA := float64(a[2]) * float64(a[3]) * clipperScale * clipperScale
	areaB := float64(b[2]) * float64(b[3]) * clipperScale * clipperScale

	union := areaA + areaB - intersection

	if union <= 0 {
		return 0.0
	}

	return float32(intersection / union)
}
