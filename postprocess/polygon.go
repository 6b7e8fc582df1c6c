package postprocess

// AssemblePolygons converts surviving axis aligned [y1, x1, y2, x2] boxes
// into 4 corner polygons.  Coordinates stay in model space, ratio correction
// for axis aligned results is the sinks responsibility and the ratios are
// passed through alongside the polygons.
func AssemblePolygons(boxes []float32, keep []int) []Polygon {

	polygons := make([]Polygon, len(keep))

	for k, idx := range keep {
		y1 := boxes[idx*boxStride+0]
		x1 := boxes[idx*boxStride+1]
		y2 := boxes[idx*boxStride+2]
		x2 := boxes[idx*boxStride+3]

		polygons[k] = Polygon{
			y1, x1,
			y1, x2,
			y2, x2,
			y2, x1,
		}
	}

	return polygons
}

// AssembleOrientedPolygons converts surviving oriented [cx, cy, w, h,
// rotation] boxes into 4 corner polygons in source image space.  Center and
// extent are scaled by the resize ratios before the corners are computed,
// rotation is scale invariant and left unchanged.
func AssembleOrientedPolygons(boxes5 []float32, keep []int,
	xRatio, yRatio float32) []Polygon {

	polygons := make([]Polygon, len(keep))

	for k, idx := range keep {
		cx := boxes5[idx*orientedStride+0] * xRatio
		cy := boxes5[idx*orientedStride+1] * yRatio
		w := boxes5[idx*orientedStride+2] * xRatio
		h := boxes5[idx*orientedStride+3] * yRatio
		angle := boxes5[idx*orientedStride+recRotation]

		c := RotatedCorners(cx, cy, w, h, angle)

		// corners are computed as (x,y), emit as (y,x) pairs
		polygons[k] = Polygon{
			c[1], c[0],
			c[3], c[2],
			c[5], c[4],
			c[7], c[6],
		}
	}

	return polygons
}

// GatherScores collects the scores and classes of the surviving detections
// in suppressor order
func GatherScores(scores []float32, classes []int, keep []int) ([]float32, []int) {

	outScores := make([]float32, len(keep))
	outClasses := make([]int, len(keep))

	for k, idx := range keep {
		outScores[k] = scores[idx]
		outClasses[k] = classes[idx]
	}

	return outScores, outClasses
}
