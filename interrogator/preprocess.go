package interrogator

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

func sigmoid(x float32) float32 {
	if x > 50 {
		x = 50
	} else if x < -50 {
		x = -50
	}
	return 1 / (1 + float32(math.Exp(float64(-x))))
}

// padSquare flattens img onto a white square canvas and resizes it to size.
func padSquare(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	maxDim := max(h, w)

	canvas := imaging.New(maxDim, maxDim, color.White)
	out := imaging.Overlay(canvas, img, image.Pt((maxDim-w)/2, (maxDim-h)/2), 1.0)
	return imaging.Resize(out, size, size, imaging.Lanczos)
}

// preprocessNCHW emits CLIP-normalized RGB planes.
func preprocessNCHW(img image.Image, size int) []float32 {
	img = padSquare(img, size)

	out := make([]float32, 3*size*size)
	rBase := 0
	gBase := size * size
	bBase := 2 * size * size

	for y := range size {
		for x := range size {
			r, g, b, _ := img.At(x, y).RGBA()
			fr := float32(r) / 65535.0
			fg := float32(g) / 65535.0
			fb := float32(b) / 65535.0

			out[rBase] = (fr - clipMean[0]) / clipStd[0]
			out[gBase] = (fg - clipMean[1]) / clipStd[1]
			out[bBase] = (fb - clipMean[2]) / clipStd[2]

			rBase++
			gBase++
			bBase++
		}
	}
	return out
}

// preprocessNHWCBGR emits interleaved BGR pixels in the 0-255 range.
func preprocessNHWCBGR(img image.Image, size int) []float32 {
	img = padSquare(img, size)

	out := make([]float32, 0, 3*size*size)
	for y := range size {
		for x := range size {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, float32(b>>8), float32(g>>8), float32(r>>8))
		}
	}
	return out
}
