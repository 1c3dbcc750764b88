// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package processing

import (
	"fmt"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Heatmap is a height x width matrix over an equirectangular projection.
// Row j is the inclination bucket, column i the azimuth bucket.
type Heatmap struct {
	m *mat.Dense
}

// NewHeatmap allocates a zero heatmap. Both dimensions must be positive.
func NewHeatmap(height, width int) *Heatmap {
	return &Heatmap{m: mat.NewDense(height, width, nil)}
}

// Dims returns (height, width).
func (h *Heatmap) Dims() (int, int) {
	if h == nil || h.m == nil {
		return 0, 0
	}
	return h.m.Dims()
}

func (h *Heatmap) At(j, i int) float64 {
	return h.m.At(j, i)
}

func (h *Heatmap) Inc(j, i int, v float64) {
	h.m.Set(j, i, h.m.At(j, i)+v)
}

func (h *Heatmap) Sum() float64 {
	if h == nil || h.m == nil {
		return 0
	}
	return mat.Sum(h.m)
}

// Normalize scales the heatmap to sum to 1. A zero heatmap is left as is.
func (h *Heatmap) Normalize() {
	total := h.Sum()
	if total == 0 {
		return
	}
	h.m.Scale(1/total, h.m)
}

// Add accumulates o into h elementwise.
func (h *Heatmap) Add(o *Heatmap) error {
	hr, hc := h.Dims()
	or, oc := o.Dims()
	if hr != or || hc != oc {
		return fmt.Errorf("heatmap shape %dx%d does not match %dx%d", or, oc, hr, hc)
	}
	h.m.Add(h.m, o.m)
	return nil
}

func (h *Heatmap) Clone() *Heatmap {
	if h == nil || h.m == nil {
		return &Heatmap{}
	}
	return &Heatmap{m: mat.DenseCopyOf(h.m)}
}

// Max returns the largest cell value.
func (h *Heatmap) Max() float64 {
	if h == nil || h.m == nil {
		return 0
	}
	return floats.Max(h.m.RawMatrix().Data)
}

type heatmapWire struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func (h *Heatmap) MarshalJSON() ([]byte, error) {
	rows, cols := h.Dims()
	w := heatmapWire{Rows: rows, Cols: cols}
	if rows > 0 {
		w.Data = make([]float64, 0, rows*cols)
		for j := 0; j < rows; j++ {
			w.Data = append(w.Data, h.m.RawRowView(j)...)
		}
	}
	return json.Marshal(w)
}

func (h *Heatmap) UnmarshalJSON(data []byte) error {
	var w heatmapWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Rows == 0 || w.Cols == 0 {
		h.m = nil
		return nil
	}
	if len(w.Data) != w.Rows*w.Cols {
		return fmt.Errorf("heatmap data has %d values, want %d", len(w.Data), w.Rows*w.Cols)
	}
	h.m = mat.NewDense(w.Rows, w.Cols, w.Data)
	return nil
}
