package util

import "strings"

// Map returns f applied to every element of slice.
func Map[T any, R any](slice []T, f func(T) R) []R {
	result := make([]R, len(slice))
	for i, v := range slice {
		result[i] = f(v)
	}
	return result
}

func Filter[T any](slice []T, f func(T) bool) []T {
	var result []T
	for _, v := range slice {
		if f(v) {
			result = append(result, v)
		}
	}
	return result
}

// Dedupe drops repeated elements, keeping the first occurrence.
func Dedupe[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	return Filter(slice, func(v T) bool {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
		return true
	})
}

// SplitList splits a separated list, trimming blanks and dropping empty and repeated items.
func SplitList(s, sep string) []string {
	items := Map(strings.Split(s, sep), strings.TrimSpace)
	return Dedupe(Filter(items, func(item string) bool { return item != "" }))
}
