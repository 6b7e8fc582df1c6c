package main

import (
	"flag"
	"log"

	yolodetect "github.com/swdee/go-yolodetect"
	"github.com/swdee/go-yolodetect/detector"
	"github.com/swdee/go-yolodetect/onnx"
	"github.com/swdee/go-yolodetect/postprocess"
	"github.com/swdee/go-yolodetect/render"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8n-obb.onnx", "ONNX model file")
	imgFile := flag.String("i", "../data/plane.jpg", "Image file to run inference on")
	labelFile := flag.String("l", "../data/dotav1_labels_list.txt", "Text file containing model labels")
	saveFile := flag.String("o", "../data/plane-out.jpg", "The image file to save detection results on")
	libPath := flag.String("r", "", "Path to onnxruntime shared library")
	precise := flag.Bool("p", false, "Use precise polygon overlap suppression")
	flag.Parse()

	// load image
	img := gocv.IMRead(*imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	// load in Model class names
	classNames, err := yolodetect.LoadLabels(*labelFile)

	if err != nil {
		log.Fatal("Error loading model labels: ", err)
	}

	if *libPath != "" {
		onnx.LibraryPath(*libPath)
	}

	// create the onnx model session
	model, err := onnx.NewModel(onnx.YOLOv8Params(*modelFile))

	if err != nil {
		log.Fatal("Error loading ONNX model: ", err)
	}

	defer model.Destroy()

	params := detector.OrientedDOTAv1Params()
	params.NMS.PreciseOverlap = *precise

	det := detector.NewOrientedDetector(params)

	// oriented polygons arrive already scaled to the source image
	overlay := render.NewOverlay(&img, classNames)

	result, err := det.DetectFrame(img, model, overlay, nil)

	if err != nil {
		log.Fatal("Detection failed with error: ", err)
	}

	logResults(result, classNames)

	if ok := gocv.IMWrite(*saveFile, img); !ok {
		log.Fatal("Failed to save the image to: ", *saveFile)
	}

	log.Println("Saved object detection result to", *saveFile)
	log.Println("done")
}

func logResults(result *postprocess.DetectionResult, classNames []string) {

	for i, p := range result.Polygons {

		name := "unknown"

		if result.Classes[i] < len(classNames) {
			name = classNames[result.Classes[i]]
		}

		log.Printf("%s @ %.2f corners=%v\n", name, result.Scores[i], p)
	}
}
