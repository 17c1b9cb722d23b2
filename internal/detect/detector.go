package detect

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/beysion/beytracker/internal/capture"
)

// Kind classifies a detected foreground region.
type Kind int

const (
	// SingleObject is one bey.
	SingleObject Kind = iota
	// MergedRegion is several overlapping beys, a collision candidate.
	MergedRegion
)

// Shape is one foreground region in one frame. Ephemeral: produced and
// consumed within a single cycle.
type Shape struct {
	Kind Kind
	// X, Y is the bounding-box centroid.
	X, Y int
	// Area is the bounding-box area used for classification.
	Area int
	// W, H is the bounding extent.
	W, H int
}

// Hit is a collision candidate position for one frame.
type Hit struct {
	X, Y int
}

// Detector turns a frame plus a background model into shapes and collision
// candidates. It owns scratch buffers sized to the frame, so it is not safe
// for concurrent Detect calls; the pipeline is its only caller.
type Detector struct {
	mask   []uint8
	width  int
	height int
}

// NewDetector returns an empty detector; buffers are sized on first use.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect standardizes the frame against the model, binarizes at
// p.Threshold, cleans the mask with a 3x3 morphological opening (2
// iterations) then closing, and classifies each contour by bounding-box
// area: below MinArea is discarded, below MaxArea is a single bey, at or
// above is a merged region. Every merged region and every pair of beys
// closer than HitDistance yields a Hit.
func (d *Detector) Detect(frame capture.Frame, model *BackgroundModel, p Params) ([]Shape, []Hit, error) {
	if frame.Width != model.Width || frame.Height != model.Height {
		return nil, nil, ErrDimensionMismatch
	}

	d.ensureBuffers(frame.Width, frame.Height)

	for i, px := range frame.Pixels {
		z := (float64(px) - model.Mean[i]) / model.Std[i]
		if z >= p.Threshold {
			d.mask[i] = 255
		} else {
			d.mask[i] = 0
		}
	}

	shapes, err := d.extractShapes(p)
	if err != nil {
		return nil, nil, err
	}

	return shapes, pairHits(shapes, p.HitDistance), nil
}

// ensureBuffers reallocates scratch space only when the frame size changes.
func (d *Detector) ensureBuffers(w, h int) {
	if w == d.width && h == d.height {
		return
	}
	d.mask = make([]uint8, w*h)
	d.width = w
	d.height = h
}

func (d *Detector) extractShapes(p Params) ([]Shape, error) {
	mat, err := gocv.NewMatFromBytes(d.height, d.width, gocv.MatTypeCV8UC1, d.mask)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	cleaned := gocv.NewMat()
	defer cleaned.Close()
	gocv.MorphologyExWithParams(mat, &cleaned, gocv.MorphOpen, kernel, 2, gocv.BorderConstant)
	gocv.MorphologyExWithParams(cleaned, &cleaned, gocv.MorphClose, kernel, 1, gocv.BorderConstant)

	contours := gocv.FindContours(cleaned, gocv.RetrievalList, gocv.ChainApproxTC89KCOS)
	defer contours.Close()

	var shapes []Shape
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := rect.Dx() * rect.Dy()
		if area < p.MinArea {
			continue
		}

		kind := SingleObject
		if area >= p.MaxArea {
			kind = MergedRegion
		}
		shapes = append(shapes, Shape{
			Kind: kind,
			X:    rect.Min.X + rect.Dx()/2,
			Y:    rect.Min.Y + rect.Dy()/2,
			Area: area,
			W:    rect.Dx(),
			H:    rect.Dy(),
		})
	}

	return shapes, nil
}

// pairHits emits a Hit at the midpoint of every bey pair closer than maxDist,
// and at the centroid of every merged region.
func pairHits(shapes []Shape, maxDist float64) []Hit {
	var hits []Hit
	for i := range shapes {
		if shapes[i].Kind == MergedRegion {
			hits = append(hits, Hit{X: shapes[i].X, Y: shapes[i].Y})
			continue
		}
		for j := i + 1; j < len(shapes); j++ {
			if shapes[j].Kind != SingleObject {
				continue
			}
			dx := float64(shapes[i].X - shapes[j].X)
			dy := float64(shapes[i].Y - shapes[j].Y)
			if math.Hypot(dx, dy) < maxDist {
				hits = append(hits, Hit{
					X: (shapes[i].X + shapes[j].X) / 2,
					Y: (shapes[i].Y + shapes[j].Y) / 2,
				})
			}
		}
	}
	return hits
}
