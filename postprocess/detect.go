package postprocess

// Polygon is a flat ordered sequence of 4 corner points as (y, x) pairs.
// Axis aligned corners are emitted top-left, top-right, bottom-right,
// bottom-left, oriented corners follow the rotation mapped equivalent of
// that order.
type Polygon [8]float32

// DetectionResult is the contract a detection call delivers to its sink,
// polygon i corresponds to Scores[i] and Classes[i]
type DetectionResult struct {
	// Polygons are the detected quadrilaterals
	Polygons []Polygon
	// Scores is the confidence score of each detection
	Scores []float32
	// Classes is the line number in the labels file the Model was trained
	// on defining the class of each detection
	Classes []int
}

// FlatPolygons flattens the polygons into a single coordinate sequence of 8
// numbers per detection for handing to a rendering sink
func (r *DetectionResult) FlatPolygons() []float32 {

	flat := make([]float32, 0, len(r.Polygons)*8)

	for _, p := range r.Polygons {
		flat = append(flat, p[:]...)
	}

	return flat
}
