package gateway

import (
	"image"
	"image/color"
	"math/rand/v2"
)

// NoiseSize is the edge length of the synthetic fallback image.
const NoiseSize = 224

// NoiseImage returns a NoiseSize x NoiseSize RGB image whose channels are
// independent uniform random bytes.
func NoiseImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, NoiseSize, NoiseSize))
	for y := 0; y < NoiseSize; y++ {
		for x := 0; x < NoiseSize; x++ {
			v := rand.Uint32()
			img.SetRGBA(x, y, color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 0xff})
		}
	}
	return img
}
