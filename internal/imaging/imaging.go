// Package imaging holds the image decode and preprocessing helpers
// shared by the feature extractor and the detection classifier.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageNet normalization constants used by vision model preprocessing.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Decode decodes raw bytes into an image. Supported formats are the
// ones registered above: JPEG, PNG, GIF, BMP, TIFF, and WebP.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Resize scales the image to size x size with Catmull-Rom
// interpolation. Model inputs want a fixed square edge regardless of
// the source aspect ratio.
func Resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// NormalizeNCHW converts an RGBA image into NCHW float32 with the given
// per-channel normalization.
func NormalizeNCHW(img *image.RGBA, size int, mean, std [3]float32) []float32 {
	data := make([]float32, 3*size*size)
	plane := size * size

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := img.RGBAAt(x, y)
			i := y*size + x
			data[i] = (float32(c.R)/255.0 - mean[0]) / std[0]
			data[plane+i] = (float32(c.G)/255.0 - mean[1]) / std[1]
			data[2*plane+i] = (float32(c.B)/255.0 - mean[2]) / std[2]
		}
	}

	return data
}
