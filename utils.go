package gnuplotter

import (
	"container/ring"
	"strconv"

	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Float | constraints.Integer
}

func Filter[T any](slice []T, predicate func(T) bool) []T {
	filtered := make([]T, 0, len(slice))
	for _, elem := range slice {
		if predicate(elem) {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

func Min[T Number](a T, b T) T {
	if a > b {
		return b
	}

	return a
}

// greatestDivisor returns the largest divisor of n that is smaller than n.
// It is used to lay panels out as close to a square as possible. 0, 1 and
// primes all yield 1.
func greatestDivisor(n int) int {
	for i := n - 1; i > 1; i-- {
		if n%i == 0 {
			return i
		}
	}
	return 1
}

// formatFloat prints the shortest representation that round trips, which is
// what gnuplot sees in inline data blocks and tic increments.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Ring adapted from https://github.com/Shopify/mybench/blob/main/ring.go
// It allocates on read, which is fine for the window sizes used by the live
// preview.
//
// There is no mutex: StreamPlot owns its window and only touches it from
// the reading goroutine and under its own lock.
//
// Copyright 2022-present, Shopify Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
type ThreadUnsafeRing[T any] struct {
	capacity int
	size     int
	ring     *ring.Ring
}

func NewRing[T any](capacity int) *ThreadUnsafeRing[T] {
	return &ThreadUnsafeRing[T]{
		capacity: capacity,
		ring:     ring.New(capacity),
	}
}

func (r *ThreadUnsafeRing[T]) Push(data T) {
	r.ring = r.ring.Next()
	r.ring.Value = data
	if r.size < r.capacity {
		r.size++
	}
}

// Len is the number of elements currently held, at most the capacity.
func (r *ThreadUnsafeRing[T]) Len() int {
	return r.size
}

// ReadAllOrdered returns the held elements from oldest to newest.
func (r *ThreadUnsafeRing[T]) ReadAllOrdered() []T {
	arr := make([]T, 0, r.size)
	if r.size == 0 {
		return arr
	}

	// r.ring is the newest element; the oldest is size-1 steps behind it.
	oldest := r.ring.Move(-(r.size - 1))
	for i := 0; i < r.size; i++ {
		arr = append(arr, oldest.Value.(T))
		oldest = oldest.Next()
	}

	return arr
}
