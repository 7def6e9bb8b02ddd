package modality

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"
)

// Preprocessing constants tuned for document OCR: a strong contrast boost
// separates ink from paper, the sharpen pass restores edges lost to
// scanning blur.
const contrastFactor = 2.0

// 3x3 sharpen kernel, divisor 16.
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

const sharpenScale = 16.0

// preprocess decodes imageBytes, converts to single-channel grayscale,
// boosts contrast around the image mean, sharpens, and re-encodes as PNG
// for the OCR collaborator.
func preprocess(imageBytes []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	gray := toGray(src)
	boostContrast(gray, contrastFactor)
	sharpened := sharpen(gray)

	var buf bytes.Buffer
	if err := png.Encode(&buf, sharpened); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray
}

// boostContrast scales each pixel's distance from the image mean in place.
func boostContrast(img *image.Gray, factor float64) {
	if len(img.Pix) == 0 {
		return
	}

	var sum int64
	for _, p := range img.Pix {
		sum += int64(p)
	}
	mean := float64(sum) / float64(len(img.Pix))

	for i, p := range img.Pix {
		img.Pix[i] = clampByte(mean + factor*(float64(p)-mean))
	}
}

// sharpen applies the 3x3 kernel; border pixels are copied unchanged.
func sharpen(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	copy(out.Pix, img.Pix)

	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			var acc float64
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					acc += sharpenKernel[k] * float64(img.GrayAt(x+dx, y+dy).Y)
					k++
				}
			}
			out.SetGray(x, y, color.Gray{Y: clampByte(acc / sharpenScale)})
		}
	}
	return out
}

func clampByte(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
