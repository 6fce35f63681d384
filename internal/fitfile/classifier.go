// Package fitfile decides whether a FIT file holds a completed workout and
// prepares its bytes for upload.
package fitfile

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
)

// Classifier decides whether a file holds a completed workout.
type Classifier struct {
	decoder Decoder
}

// NewClassifier creates a classifier backed by decoder
func NewClassifier(decoder Decoder) *Classifier {
	return &Classifier{decoder: decoder}
}

// IsWorkout reports whether at least one record in path is workout-like.
// An empty record sequence is not a workout.
func (c *Classifier) IsWorkout(ctx context.Context, path string) (bool, error) {
	kinds, err := c.decoder.Decode(ctx, path)
	if err != nil {
		return false, err
	}

	return ContainsWorkout(kinds), nil
}

// ContainsWorkout reports whether any kind is in the workout kind set.
func ContainsWorkout(kinds []RecordKind) bool {
	for _, k := range kinds {
		if k.IsWorkoutLike() {
			return true
		}
	}
	return false
}

// EncodeFile reads path fully and returns its standard base64 encoding
// together with the raw size in bytes.
func EncodeFile(path string) (string, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return base64.StdEncoding.EncodeToString(data), int64(len(data)), nil
}
