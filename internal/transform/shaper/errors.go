package shaper

import "errors"

// ErrFrameTooLarge is returned when a frame exceeds the shaper's burst
// budget and could never be admitted at the configured rate.
var ErrFrameTooLarge = errors.New("shaper: frame exceeds the shaping burst budget")
