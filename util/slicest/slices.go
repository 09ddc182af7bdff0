// Copyright (c) 2026 Keymaster Team
// keyrot - SSH key rotation and archive manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package slicest holds small generic slice helpers. Helpers never mutate
// their input; they return fresh slices.
package slicest

// Map returns fn applied to every element of s.
func Map[T, U any, S ~[]T](s S, fn func(T) U) []U {
	result := make([]U, len(s))
	for i, t := range s {
		result[i] = fn(t)
	}
	return result
}

// Filter returns the elements of s for which keep reports true, in order.
func Filter[T any, S ~[]T](s S, keep func(T) bool) S {
	result := make(S, 0, len(s))
	for _, t := range s {
		if keep(t) {
			result = append(result, t)
		}
	}
	return result
}

// Reject is the complement of Filter.
func Reject[T any, S ~[]T](s S, drop func(T) bool) S {
	return Filter(s, func(t T) bool { return !drop(t) })
}

// Count returns how many elements satisfy fn.
func Count[T any, S ~[]T](s S, fn func(T) bool) int {
	n := 0
	for _, t := range s {
		if fn(t) {
			n++
		}
	}
	return n
}

// ToSet collects the keys produced by fn into a set.
func ToSet[T any, K comparable, S ~[]T](s S, fn func(T) K) map[K]struct{} {
	result := make(map[K]struct{}, len(s))
	for _, t := range s {
		result[fn(t)] = struct{}{}
	}
	return result
}
