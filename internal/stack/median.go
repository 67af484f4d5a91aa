// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package stack

import (
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/floats"
)

// Partially reorders a so that a[k] holds the k-th smallest element, all
// elements before it are less or equal, and all after are greater or equal.
// Randomized pivots keep sorted or constant input from degrading.
func qselect(a []float64, k int) float64 {
	left, right := 0, len(a)-1
	for left < right {
		pivotIndex := left + int(fastrand.Uint32n(uint32(right-left+1)))
		pivotIndex = partition(a, left, right, pivotIndex)
		switch {
		case k == pivotIndex:
			return a[k]
		case k < pivotIndex:
			right = pivotIndex - 1
		default:
			left = pivotIndex + 1
		}
	}
	return a[k]
}

// Lomuto partition of a[left..right] around a[pivotIndex]. Returns the
// final position of the pivot.
func partition(a []float64, left, right, pivotIndex int) int {
	pivot := a[pivotIndex]
	a[pivotIndex], a[right] = a[right], a[pivotIndex]
	store := left
	for i := left; i < right; i++ {
		if a[i] < pivot {
			a[i], a[store] = a[store], a[i]
			store++
		}
	}
	a[store], a[right] = a[right], a[store]
	return store
}

// Median of a non-empty slice. Reorders a. Even lengths average the two
// middle values.
func median(a []float64) float64 {
	n := len(a)
	upper := qselect(a, n/2)
	if n%2 == 1 {
		return upper
	}
	// after selection everything left of n/2 is <= upper
	lower := floats.Max(a[:n/2])
	return (lower + upper) / 2
}

// Arithmetic mean of a non-empty slice
func mean(a []float64) float64 {
	return floats.Sum(a) / float64(len(a))
}
