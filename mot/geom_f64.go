package mot

import (
	"image"
	"math"
)

// Rectangle is an axis-aligned box in pixel coordinates: top-left corner plus size.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewRect creates rectangle from its top-left corner and size
func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectXYXY creates rectangle from corner coordinates (x1,y1) - (x2,y2), which is what
// most detectors emit.
func NewRectXYXY(x1, y1, x2, y2 float64) Rectangle {
	return Rectangle{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// NewRectFrom converts image.Rectangle
func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// Center returns midpoint of the rectangle
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + r.Width/2.0,
		Y: r.Y + r.Height/2.0,
	}
}

// Diagonal returns length of the rectangle's diagonal
func (r Rectangle) Diagonal() float64 {
	return math.Hypot(r.Width, r.Height)
}

// Image rounds the rectangle to integer pixel coordinates.
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// Sub returns displacement from other to p
func (p Point) Sub(other Point) Vector {
	return Vector{
		DX: p.X - other.X,
		DY: p.Y - other.Y,
	}
}

// Vector is 2D displacement in pixels. Camera-motion compensation is expressed as a Vector per frame pair.
type Vector struct {
	DX float64
	DY float64
}

// Sub returns v - other
func (v Vector) Sub(other Vector) Vector {
	return Vector{
		DX: v.DX - other.DX,
		DY: v.DY - other.DY,
	}
}

// Norm returns Euclidean length of the vector
func (v Vector) Norm() float64 {
	return math.Hypot(v.DX, v.DY)
}

func euclideanDistance(p1, p2 Point) float64 {
	return p1.Sub(p2).Norm()
}
