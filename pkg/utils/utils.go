// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package utils

import (
	"encoding/json"
	"strings"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// ToJson marshals v, returning "{}" on failure so log call sites never
// have to branch on an encoding error.
func ToJson(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// IsEmpty reports whether s is empty or whitespace only.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Clamp01 clamps v to the closed interval [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
