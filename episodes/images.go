package episodes

import (
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// decodeImage reads one image file and returns its pixels as a flat float32
// slice of length ImageSize*ImageSize*Channels, scaled to [0, 1]. Images
// whose size differs from the variant's are resized first; single-channel
// variants are converted to grayscale.
func decodeImage(path string, v Variant) ([]float32, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %q", path)
	}
	if bounds := img.Bounds(); bounds.Dx() != v.ImageSize || bounds.Dy() != v.ImageSize {
		img = imaging.Resize(img, v.ImageSize, v.ImageSize, imaging.Lanczos)
	}
	if v.Channels == 1 {
		img = imaging.Grayscale(img)
	}

	pixels := make([]float32, v.ImageSize*v.ImageSize*v.Channels)
	minPt := img.Bounds().Min
	pos := 0
	for y := 0; y < v.ImageSize; y++ {
		for x := 0; x < v.ImageSize; x++ {
			r, g, b, _ := img.At(minPt.X+x, minPt.Y+y).RGBA()
			if v.Channels == 1 {
				pixels[pos] = float32(r>>8) / 255
				pos++
				continue
			}
			for _, channel := range []uint32{r, g, b} {
				pixels[pos] = float32(channel>>8) / 255
				pos++
			}
		}
	}
	return pixels, nil
}

// oneHot encodes label as a float32 vector of width n.
func oneHot(label, n int) []float32 {
	v := make([]float32, n)
	v[label] = 1
	return v
}
