package native

import (
	"context"
	"fmt"
	"path/filepath"
)

// ConvertIfcToGlb loads the library if needed and forwards one conversion
// request to it. The call blocks until the native converter returns; its
// status code is passed through unchanged.
func ConvertIfcToGlb(inputPath, outputPath, optionsJSON string) (int, error) {
	if err := EnsureLoaded(); err != nil {
		return 0, err
	}

	in, err := filepath.Abs(inputPath)
	if err != nil {
		return 0, fmt.Errorf("native: resolve input path: %w", err)
	}
	out, err := filepath.Abs(outputPath)
	if err != nil {
		return 0, fmt.Errorf("native: resolve output path: %w", err)
	}

	return int(fnConvert(in, out, optionsJSON)), nil
}

// Converter exposes the shared library as a conversion backend.
type Converter struct{}

// Name identifies the backend in conversion records.
func (Converter) Name() string { return "native" }

// Convert checks ctx before entering the library. A native call in flight
// cannot be interrupted.
func (Converter) Convert(ctx context.Context, inputPath, outputPath, optionsJSON string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return ConvertIfcToGlb(inputPath, outputPath, optionsJSON)
}
