package vlm

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
	"gorgonia.org/tensor"
)

// DefaultImageSize is the CLIP ViT-B/16 input resolution.
const DefaultImageSize = 224

// CLIP normalization constants.
var (
	CLIPMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	CLIPStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// CLIPPreprocessor resizes the shortest side to Size, center crops a
// Size x Size square, rescales to [0,1] and normalizes per channel. The result
// is a [1,3,Size,Size] float32 tensor in NCHW order.
type CLIPPreprocessor struct {
	Size int
	Mean [3]float32
	Std  [3]float32
}

// NewCLIPPreprocessor returns a preprocessor with CLIP constants. size <= 0
// selects DefaultImageSize.
func NewCLIPPreprocessor(size int) *CLIPPreprocessor {
	if size <= 0 {
		size = DefaultImageSize
	}
	return &CLIPPreprocessor{Size: size, Mean: CLIPMean, Std: CLIPStd}
}

// Preprocess implements gateway.ImagePreprocessor.
func (p *CLIPPreprocessor) Preprocess(img image.Image) (tensor.Tensor, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("empty image")
	}
	cropped := centerCrop(resizeShortest(img, p.Size), p.Size)

	n := p.Size * p.Size
	data := make([]float32, 3*n)
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			c := cropped.RGBAAt(x, y)
			i := y*p.Size + x
			data[i] = (float32(c.R)/255 - p.Mean[0]) / p.Std[0]
			data[n+i] = (float32(c.G)/255 - p.Mean[1]) / p.Std[1]
			data[2*n+i] = (float32(c.B)/255 - p.Mean[2]) / p.Std[2]
		}
	}
	return tensor.New(
		tensor.WithShape(1, 3, p.Size, p.Size),
		tensor.WithBacking(data),
	), nil
}

// resizeShortest scales img so its shorter side equals target, keeping aspect.
func resizeShortest(img image.Image, target int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var newW, newH int
	if w < h {
		newW = target
		newH = int(float32(h)*float32(target)/float32(w) + 0.5)
	} else {
		newH = target
		newW = int(float32(w)*float32(target)/float32(h) + 0.5)
	}
	newW, newH = max(newW, target), max(newH, target)
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func centerCrop(img *image.RGBA, size int) *image.RGBA {
	b := img.Bounds()
	x0 := b.Min.X + (b.Dx()-size)/2
	y0 := b.Min.Y + (b.Dy()-size)/2
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return dst
}
