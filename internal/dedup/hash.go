// Package dedup drops frames that look like the frame kept before them.
package dedup

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// GridSize is the side of the downscaled grid the signature is built from.
const GridSize = 8

// Bits is the number of bits in a Signature.
const Bits = GridSize * GridSize

// Signature is a 64-bit average hash. Bit i is set when grid sample i is
// brighter than the mean of all samples.
type Signature uint64

// Grid downsamples img to an 8x8 grayscale grid in row-major order.
func Grid(img image.Image) [Bits]float64 {
	small := image.NewGray(image.Rect(0, 0, GridSize, GridSize))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var grid [Bits]float64
	for i, v := range small.Pix {
		grid[i] = float64(v)
	}
	return grid
}

// Hash computes the average hash of img.
func Hash(img image.Image) Signature {
	return hashGrid(Grid(img))
}

func hashGrid(grid [Bits]float64) Signature {
	var mean float64
	for _, v := range grid {
		mean += v
	}
	mean /= Bits

	var sig Signature
	for i, v := range grid {
		if v > mean {
			sig |= 1 << uint(i)
		}
	}
	return sig
}

// Similarity returns the fraction of matching bits, in [0, 1].
func (s Signature) Similarity(other Signature) float64 {
	return float64(Bits-bits.OnesCount64(uint64(s^other))) / Bits
}

// Descriptor returns the grid scaled to [0, 1], for vector storage.
func Descriptor(img image.Image) []float32 {
	grid := Grid(img)
	out := make([]float32, Bits)
	for i, v := range grid {
		out[i] = float32(v / 255)
	}
	return out
}
