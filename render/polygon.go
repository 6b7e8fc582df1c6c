// Package render draws detection results onto images using GoCV
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// boxLabel defines a label to be rendered above a detection
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Overlay draws detection polygons and class labels onto a target Mat.  It
// satisfies the detection pipelines Sink interface, scaling each delivered
// coordinate by the given ratios to map it back into the target image.
type Overlay struct {
	// Img is the target image detections get drawn on
	Img *gocv.Mat
	// ClassNames are the labels of the model the detections came from
	ClassNames []string
	// Font defines the label text style
	Font Font
	// LineThickness is the polygon edge thickness in pixels
	LineThickness int
}

// NewOverlay returns an Overlay drawing on the given image with default
// font settings
func NewOverlay(img *gocv.Mat, classNames []string) *Overlay {
	return &Overlay{
		Img:           img,
		ClassNames:    classNames,
		Font:          DefaultFont(),
		LineThickness: 2,
	}
}

// Render draws the delivered detections.  Polygon i occupies
// polygons[i*8:(i+1)*8] as 4 (y, x) corner pairs which are scaled by the
// ratios into target image coordinates.
func (o *Overlay) Render(polygons []float32, scores []float32, classes []int,
	xRatio, yRatio float32) error {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0)

	n := len(polygons) / 8

	for i := 0; i < n; i++ {

		// Get the color for this object
		colorIndex := i % len(classColors)
		useClr := classColors[colorIndex]

		corners := o.scaleCorners(polygons[i*8:(i+1)*8], xRatio, yRatio)

		// draw polygon edges around detected object
		for c := 0; c < 4; c++ {
			gocv.Line(o.Img, corners[c], corners[(c+1)%4], useClr,
				o.LineThickness)
		}

		// anchor the label above the top most corner
		anchor := corners[0]

		for _, p := range corners[1:] {
			if p.Y < anchor.Y {
				anchor = p
			}
		}

		// create text for label
		text := fmt.Sprintf("%s %.2f", o.className(classes[i]), scores[i])
		textSize := gocv.GetTextSize(text, o.Font.Face, o.Font.Scale,
			o.Font.Thickness)

		// Calculate the alignment of text label
		var centerX int

		switch o.Font.Alignment {
		case Center:
			centerX = anchor.X

		case Right:
			centerX = anchor.X - (textSize.X / 2) - o.Font.RightPad +
				(o.LineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = anchor.X + (textSize.X / 2) + o.Font.LeftPad -
				(o.LineThickness / 2)
		}

		// Adjust the label position so the text is centered horizontally
		labelPosition := image.Pt(centerX-textSize.X/2,
			anchor.Y-o.Font.BottomPad)

		// create box for placing text on
		bRect := image.Rect(centerX-textSize.X/2-o.Font.LeftPad,
			anchor.Y-textSize.Y-o.Font.TopPad-o.Font.BottomPad,
			centerX+textSize.X/2+o.Font.RightPad, anchor.Y)

		// record label rendering details
		nextLabel := boxLabel{
			rect:    bRect,
			clr:     useClr,
			text:    text,
			textPos: labelPosition,
		}
		boxLabels = append(boxLabels, nextLabel)
	}

	// draw all precalculated box labels so they are the top most layer on
	// the image and don't get overlapped by polygon edges
	for _, box := range boxLabels {
		// draw box text gets written on
		gocv.Rectangle(o.Img, box.rect, box.clr, -1)

		// Draw the label over box
		gocv.PutTextWithParams(o.Img, box.text, box.textPos,
			o.Font.Face, o.Font.Scale, o.Font.Color, o.Font.Thickness,
			o.Font.LineType, false)
	}

	return nil
}

// scaleCorners maps the 4 (y, x) corner pairs of a polygon into target
// image points
func (o *Overlay) scaleCorners(p []float32, xRatio,
	yRatio float32) [4]image.Point {

	var corners [4]image.Point

	for c := 0; c < 4; c++ {
		corners[c] = image.Pt(
			int(p[c*2+1]*xRatio),
			int(p[c*2]*yRatio),
		)
	}

	return corners
}

// className returns the label for a class index, falling back to the index
// number when no labels were loaded
func (o *Overlay) className(class int) string {

	if class >= 0 && class < len(o.ClassNames) {
		return o.ClassNames[class]
	}

	return fmt.Sprintf("%d", class)
}
