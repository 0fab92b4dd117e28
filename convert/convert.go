// Package convert projects an episode state into the numeric observations
// handed to learners.
//
// Two encodings exist and are selected once when an engine is built:
//   - KindScalar: one float32 per cell, shape [H, W]
//   - KindImage:  uint8 RGB pixels, shape [H*scale, W*scale, 3]
//
// Both are pure functions of game.EpisodeState.
package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brensch/snekgym/game"
	"gonum.org/v1/gonum/mat"
)

// Kind selects an observation encoding.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindImage  Kind = "image"
)

// DefaultImageScale upsamples a 12x12 board to 84x84.
const DefaultImageScale = 7

// ParseKind accepts the names used in config and on the command line.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindScalar, "mlp", "grid":
		return KindScalar, nil
	case KindImage, "cnn", "rgb":
		return KindImage, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// Encoder turns a state into an observation.
type Encoder interface {
	Kind() Kind
	// Shape is the observation shape for a board of the given size.
	Shape(boardSize int) []int
	Encode(state *game.EpisodeState) Observation
}

// New returns the encoder for kind. scale only matters for KindImage.
func New(kind Kind, scale int) (Encoder, error) {
	switch kind {
	case KindScalar:
		return ScalarGrid{}, nil
	case KindImage:
		if scale < 1 {
			return nil, fmt.Errorf("image scale must be >= 1, got %d", scale)
		}
		return Image{Scale: scale}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", kind)
	}
}

// Observation is a tagged variant: Scalars is set for KindScalar and Pixels
// for KindImage. Data is row-major in Shape order.
//
// In JSON, pixels are a plain array of numbers rather than the base64 string
// encoding/json uses for byte slices.
type Observation struct {
	Kind    Kind      `json:"kind"`
	Shape   []int     `json:"shape"`
	Scalars []float32 `json:"scalars,omitempty"`
	Pixels  []uint8   `json:"pixels,omitempty"`
}

type wireObservation struct {
	Kind    Kind      `json:"kind"`
	Shape   []int     `json:"shape"`
	Scalars []float32 `json:"scalars,omitempty"`
	Pixels  []uint16  `json:"pixels,omitempty"`
}

func (o Observation) MarshalJSON() ([]byte, error) {
	w := wireObservation{Kind: o.Kind, Shape: o.Shape, Scalars: o.Scalars}
	if len(o.Pixels) > 0 {
		w.Pixels = make([]uint16, len(o.Pixels))
		for i, v := range o.Pixels {
			w.Pixels[i] = uint16(v)
		}
	}
	return json.Marshal(w)
}

func (o *Observation) UnmarshalJSON(data []byte) error {
	var w wireObservation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Observation{Kind: w.Kind, Shape: w.Shape, Scalars: w.Scalars}
	if len(w.Pixels) > 0 {
		o.Pixels = make([]uint8, len(w.Pixels))
		for i, v := range w.Pixels {
			if v > 255 {
				return fmt.Errorf("pixel %d out of range: %d", i, v)
			}
			o.Pixels[i] = uint8(v)
		}
	}
	return nil
}

// Matrix returns a scalar observation as a dense matrix. Image observations
// are not two dimensional and return nil.
func (o Observation) Matrix() *mat.Dense {
	if o.Kind != KindScalar || len(o.Shape) != 2 {
		return nil
	}
	data := make([]float64, len(o.Scalars))
	for i, v := range o.Scalars {
		data[i] = float64(v)
	}
	return mat.NewDense(o.Shape[0], o.Shape[1], data)
}

// lerp spreads n values linearly from a (index 0) to b (index n-1).
func lerp(a, b float32, i, n int) float32 {
	if n <= 1 {
		return a
	}
	return a + (b-a)*float32(i)/float32(n-1)
}
