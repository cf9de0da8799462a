package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultInferenceMaxDimension bounds the width/height of media sent inline
// to the inference provider. Wearable frames are already small; photos can
// be full sensor resolution and are downscaled to keep request payloads lean.
const DefaultInferenceMaxDimension = 768

// DownscaleJPEG resizes a JPEG payload so its longest side is at most
// maxDimension, preserving aspect ratio. Payloads already within bounds are
// returned unchanged. An undecodable payload reports ErrDecode.
func DownscaleJPEG(data []byte, maxDimension int) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %v: %w", err, ErrDecode)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDimension && h <= maxDimension {
		return data, nil
	}

	newW, newH := w, h
	if w > h {
		newW = maxDimension
		newH = h * maxDimension / w
	} else {
		newH = maxDimension
		newW = w * maxDimension / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
