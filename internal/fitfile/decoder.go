package fitfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/typedef"
)

var (
	// ErrDecode is returned when a file is not a valid FIT file.
	ErrDecode = errors.New("decode FIT file")
	// ErrRead is returned when a file cannot be opened or fully read.
	ErrRead = errors.New("read FIT file")
)

// Decoder turns a file into the sequence of record kinds it contains.
type Decoder interface {
	Decode(ctx context.Context, path string) ([]RecordKind, error)
}

// FitDecoder decodes Garmin FIT files with github.com/muktihari/fit.
type FitDecoder struct{}

// NewFitDecoder creates a FIT decoder
func NewFitDecoder() *FitDecoder {
	return &FitDecoder{}
}

// Decode reads every chained FIT sequence in path and returns the kind of each message.
func (d *FitDecoder) Decode(ctx context.Context, path string) ([]RecordKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()

	dec := decoder.New(bufio.NewReader(f))

	var kinds []RecordKind
	sequences := 0
	for dec.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fit, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
		}
		sequences++

		for i := range fit.Messages {
			kinds = append(kinds, kindOf(fit.Messages[i].Num))
		}
	}

	if sequences == 0 {
		return nil, fmt.Errorf("%w: %s: no FIT sequence found", ErrDecode, path)
	}

	return kinds, nil
}

func kindOf(num typedef.MesgNum) RecordKind {
	switch num {
	case typedef.MesgNumWorkout:
		return KindWorkout
	case typedef.MesgNumSession:
		return KindSession
	case typedef.MesgNumActivity:
		return KindActivity
	case typedef.MesgNumWorkoutSession:
		return KindWorkoutSession
	default:
		return KindOther
	}
}
