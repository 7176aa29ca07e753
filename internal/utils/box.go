package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/menta2k/image-classifier/pkg/types"
)

// ParseBox parses a normalized "x,y,w,h" crop specification
func ParseBox(s string) (types.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.Box{}, fmt.Errorf("crop box must be x,y,w,h, got %q", s)
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return types.Box{}, fmt.Errorf("invalid crop value %q: %w", p, err)
		}
		if f < 0 || f > 1 {
			return types.Box{}, fmt.Errorf("crop value %v out of [0,1]", f)
		}
		v[i] = f
	}
	if v[2] == 0 || v[3] == 0 {
		return types.Box{}, fmt.Errorf("crop box must have non-zero size")
	}

	return types.Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}
