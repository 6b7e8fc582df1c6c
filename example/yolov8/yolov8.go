package main

import (
	"flag"
	"log"

	yolodetect "github.com/swdee/go-yolodetect"
	"github.com/swdee/go-yolodetect/detector"
	"github.com/swdee/go-yolodetect/onnx"
	"github.com/swdee/go-yolodetect/render"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelFile := flag.String("m", "../data/yolov8n.onnx", "ONNX model file")
	imgFile := flag.String("i", "../data/bus.jpg", "Image file to run inference on")
	labelFile := flag.String("l", "../data/coco_80_labels_list.txt", "Text file containing model labels")
	saveFile := flag.String("o", "../data/bus-out.jpg", "The image file to save detection results on")
	libPath := flag.String("r", "", "Path to onnxruntime shared library")
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

	det := detector.NewDetector(detector.YOLOv8COCOParams())

	// draw detections on top of the source image
	overlay := render.NewOverlay(&img, classNames)

	err = det.DetectFrame(img, model, overlay, nil)

	if err != nil {
		log.Fatal("Detection failed with error: ", err)
	}

	if ok := gocv.IMWrite(*saveFile, img); !ok {
		log.Fatal("Failed to save the image to: ", *saveFile)
	}

	log.Println("Saved object detection result to", *saveFile)
	log.Println("done")
}
