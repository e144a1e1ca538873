// Package render paints classification results on frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/carevision/carevision-go/mot"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// StoppedText is alert painted above stationary objects
const StoppedText = "VEHICLE STOPPED"

var (
	// ColorMoving is box colour of moving objects
	ColorMoving = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	// ColorStationary is box colour of stationary objects
	ColorStationary = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	// ColorInfo is colour of frame header
	ColorInfo = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Style holds drawing parameters
type Style struct {
	Thickness    int
	CaptionScale float64
	AlertScale   float64
	// Labels are class names indexed by class id. Nil disables class prefix.
	Labels []string
}

// DefaultStyle returns OpenCV Hershey simplex captions at 0.6 and alerts at 0.7, 2 px lines
func DefaultStyle() Style {
	return Style{
		Thickness:    2,
		CaptionScale: 0.6,
		AlertScale:   0.7,
	}
}

// ShortID formats identity for captions. UUIDs are cut to their first 8 hex digits.
func ShortID(id any) string {
	switch v := id.(type) {
	case uuid.UUID:
		return v.String()[:8]
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Caption returns text painted next to object box
func Caption[K comparable](object mot.Classification[K], labels []string) string {
	caption := fmt.Sprintf("ID %s V:%.1f", ShortID(object.ID), object.Speed)
	if object.ClassID >= 0 && object.ClassID < len(labels) {
		caption = labels[object.ClassID] + " " + caption
	}
	return caption
}

// BoxColor returns colour for object state
func BoxColor(stationary bool) color.RGBA {
	if stationary {
		return ColorStationary
	}
	return ColorMoving
}

// Annotate draws boxes, captions and alerts for every object
func Annotate[K comparable](frame *gocv.Mat, objects []mot.Classification[K], style Style) {
	for _, object := range objects {
		box := object.BBox.Image()
		objectColor := BoxColor(object.Stationary)
		gocv.Rectangle(frame, box, objectColor, style.Thickness)
		gocv.PutText(frame, Caption(object, style.Labels), image.Pt(box.Min.X, box.Min.Y-10), gocv.FontHersheySimplex, style.CaptionScale, objectColor, style.Thickness)
		if object.Stationary {
			gocv.PutText(frame, StoppedText, image.Pt(box.Min.X, box.Min.Y-30), gocv.FontHersheySimplex, style.AlertScale, objectColor, style.Thickness)
		}
	}
}

// AlertText is appended to frame header while camera alert is active
const AlertText = "MOTION"

// HeaderText formats camera name, frame number and camera-motion compensation
func HeaderText(camera string, frame int, compensation mot.Vector, alert bool) string {
	text := fmt.Sprintf("%s #%d dx:%.1f dy:%.1f", camera, frame, compensation.DX, compensation.DY)
	if alert {
		text += " " + AlertText
	}
	return text
}

// Header writes single line of text at top-left corner
func Header(frame *gocv.Mat, text string, style Style) {
	gocv.PutText(frame, text, image.Pt(10, 20), gocv.FontHersheySimplex, style.CaptionScale, ColorInfo, 1)
}
