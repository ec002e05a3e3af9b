// Copyright 2026 The Vereinsmatrix Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import "fmt"

// Chunk is one Distance Matrix request: the cross product of Origins
// and Destinations, both given as indices into the address list.
type Chunk struct {
	Origins      []int
	Destinations []int
}

// Elements returns the number of billable elements in the chunk.
func (c Chunk) Elements() int {
	return len(c.Origins) * len(c.Destinations)
}

// PlanChunks splits the all-pairs computation over the given indices
// into request-sized chunks. The block size is the largest square that
// respects both the per-request element cap and the per-axis cap, so
// each pair lands in exactly one chunk. Diagonal pairs ride along in
// on-diagonal chunks but are discarded on reassembly.
func PlanChunks(indices []int, maxElements, perAxisCap int) ([]Chunk, error) {
	if maxElements < 1 || perAxisCap < 1 {
		return nil, fmt.Errorf("invalid chunk limits: %d elements, %d per axis", maxElements, perAxisCap)
	}

	block := perAxisCap
	for block*block > maxElements {
		block--
	}

	if block < 1 {
		return nil, fmt.Errorf("element cap %d too small for any chunk", maxElements)
	}

	var blocks [][]int
	for start := 0; start < len(indices); start += block {
		end := start + block
		if end > len(indices) {
			end = len(indices)
		}

		blocks = append(blocks, indices[start:end])
	}

	var chunks []Chunk
	for _, origins := range blocks {
		for _, destinations := range blocks {
			chunks = append(chunks, Chunk{Origins: origins, Destinations: destinations})
		}
	}

	return chunks, nil
}
