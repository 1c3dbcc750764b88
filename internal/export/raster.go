// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"path/filepath"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/hmd_viewing/internal/fileutil"
	"github.com/relabs-tech/hmd_viewing/internal/processing"
)

const (
	targetWidth = 800
	titleHeight = 20
	barWidth    = 16
	barMargin   = 8
)

// Hot maps x in [0, 1] to the black-red-yellow-white "hot" colormap.
func Hot(x float64) color.RGBA {
	x = math.Max(0, math.Min(1, x))
	r := math.Min(1, x/0.375)
	g := math.Max(0, math.Min(1, (x-0.375)/0.375))
	b := math.Max(0, math.Min(1, (x-0.75)/0.25))
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// RenderHeatmap draws h scaled up to roughly targetWidth pixels, with a
// title line above and a color bar on the right. vmax <= 0 uses the
// heatmap's own maximum.
func RenderHeatmap(h *processing.Heatmap, title string, vmax float64) *image.RGBA {
	height, width := h.Dims()
	if vmax <= 0 {
		vmax = h.Max()
	}

	cells := image.NewRGBA(image.Rect(0, 0, width, height))
	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			v := 0.0
			if vmax > 0 {
				v = h.At(j, i) / vmax
			}
			cells.SetRGBA(i, j, Hot(v))
		}
	}

	scale := 1
	if width > 0 && width < targetWidth {
		scale = targetWidth / width
	}
	mapRect := image.Rect(0, titleHeight, width*scale, titleHeight+height*scale)

	out := image.NewRGBA(image.Rect(0, 0, mapRect.Max.X+barMargin+barWidth, mapRect.Max.Y))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.NearestNeighbor.Scale(out, mapRect, cells, cells.Bounds(), draw.Src, nil)

	barX := mapRect.Max.X + barMargin
	for y := mapRect.Min.Y; y < mapRect.Max.Y; y++ {
		frac := 1 - float64(y-mapRect.Min.Y)/float64(mapRect.Dy())
		c := Hot(frac)
		for x := barX; x < barX+barWidth; x++ {
			out.SetRGBA(x, y, c)
		}
	}

	drawer := &font.Drawer{
		Dst:  out,
		Src:  image.Black,
		Face: basicfont.Face7x13,
	}
	textWidth := drawer.MeasureString(title).Ceil()
	drawer.Dot = fixed.P(max(0, (mapRect.Dx()-textWidth)/2), 14)
	drawer.DrawString(title)

	return out
}

// WriteHeatmapPNG renders h and stores it at path.
func WriteHeatmapPNG(path string, h *processing.Heatmap, title string, vmax float64) error {
	img := RenderHeatmap(h, title, vmax)
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

// Frame is the heatmap of one time window.
type Frame struct {
	Start   float64
	End     float64
	Heatmap *processing.Heatmap
}

// WriteFrames stores frames as dir/frame_NNNN.png sharing one color scale.
func WriteFrames(dir string, frames []Frame) error {
	vmax := 0.0
	for _, f := range frames {
		vmax = math.Max(vmax, f.Heatmap.Max())
	}
	for i, f := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
		title := fmt.Sprintf("From %6.2f s to %6.2f s", f.Start, f.End)
		if err := WriteHeatmapPNG(path, f.Heatmap, title, vmax); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return nil
}
