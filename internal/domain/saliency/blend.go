package saliency

import (
	"fmt"
	"image"
	"math"
)

// Blend смешивает тепловую карту и оригинал: heat*wHeat + orig*wOrig,
// результат обрезается в [0,255] и округляется. Альфа всегда 255.
func Blend(heat, orig *image.RGBA, wHeat, wOrig float64) (*image.RGBA, error) {
	hs, ds := heat.Bounds().Size(), orig.Bounds().Size()
	if hs != ds {
		return nil, fmt.Errorf("blend size mismatch: heatmap %v, original %v", hs, ds)
	}

	out := image.NewRGBA(image.Rect(0, 0, hs.X, hs.Y))
	for y := 0; y < hs.Y; y++ {
		hi := heat.PixOffset(heat.Rect.Min.X, heat.Rect.Min.Y+y)
		oi := orig.PixOffset(orig.Rect.Min.X, orig.Rect.Min.Y+y)
		di := out.PixOffset(0, y)
		for x := 0; x < hs.X; x++ {
			for c := 0; c < 3; c++ {
				v := float64(heat.Pix[hi+c])*wHeat + float64(orig.Pix[oi+c])*wOrig
				out.Pix[di+c] = clampByte(v)
			}
			out.Pix[di+3] = 0xff
			hi += 4
			oi += 4
			di += 4
		}
	}
	return out, nil
}

func clampByte(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
