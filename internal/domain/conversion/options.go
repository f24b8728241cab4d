package conversion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// LevelOfDetail controls tessellation density in the native converter.
type LevelOfDetail string

const (
	LODLow    LevelOfDetail = "low"
	LODMedium LevelOfDetail = "medium"
	LODHigh   LevelOfDetail = "high"
)

// ParseLevelOfDetail is case-insensitive.
func ParseLevelOfDetail(s string) (LevelOfDetail, bool) {
	switch LevelOfDetail(strings.ToLower(strings.TrimSpace(s))) {
	case LODLow:
		return LODLow, true
	case LODMedium:
		return LODMedium, true
	case LODHigh:
		return LODHigh, true
	}
	return "", false
}

const (
	DefaultUnits                  = "meter"
	DefaultTriangulationTolerance = 0.001
)

// ErrInvalidOptions wraps every Options validation failure.
var ErrInvalidOptions = errors.New("invalid conversion options")

// Options is the JSON payload handed to the converter.
type Options struct {
	Units                  string        `json:"units" yaml:"units" toml:"units"`
	TriangulationTolerance float64       `json:"triangulation_tolerance" yaml:"triangulation_tolerance" toml:"triangulation_tolerance"`
	WeldVertices           bool          `json:"weld_vertices" yaml:"weld_vertices" toml:"weld_vertices"`
	IncludeProperties      bool          `json:"include_properties" yaml:"include_properties" toml:"include_properties"`
	LOD                    LevelOfDetail `json:"lod" yaml:"lod" toml:"lod"`
}

// DefaultOptions returns the converter defaults.
func DefaultOptions() Options {
	return Options{
		Units:                  DefaultUnits,
		TriangulationTolerance: DefaultTriangulationTolerance,
		WeldVertices:           true,
		IncludeProperties:      false,
		LOD:                    LODMedium,
	}
}

// ParseOptionsQuery builds Options from request query parameters.
// Values that cannot be parsed fall back to the defaults.
func ParseOptionsQuery(q url.Values) Options {
	opts := DefaultOptions()
	if v := strings.TrimSpace(q.Get("units")); v != "" {
		opts.Units = v
	}
	if v, err := strconv.ParseFloat(q.Get("triangulation_tolerance"), 64); err == nil {
		opts.TriangulationTolerance = v
	}
	if v, ok := ParseBool(q.Get("weld_vertices")); ok {
		opts.WeldVertices = v
	}
	if v, ok := ParseBool(q.Get("include_properties")); ok {
		opts.IncludeProperties = v
	}
	if v, ok := ParseLevelOfDetail(q.Get("lod")); ok {
		opts.LOD = v
	}
	return opts
}

// ParseOptionsJSON decodes a JSON payload over the defaults. Unknown keys are
// ignored; an empty payload yields the defaults.
func ParseOptionsJSON(data []byte) (Options, error) {
	opts := DefaultOptions()
	if len(strings.TrimSpace(string(data))) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return opts, nil
}

// ParseBool accepts true/1/yes/y and false/0/no/n in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true, true
	case "false", "0", "no", "n":
		return false, true
	}
	return false, false
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Units) == "" {
		return fmt.Errorf("%w: units must not be empty", ErrInvalidOptions)
	}
	if math.IsNaN(o.TriangulationTolerance) || math.IsInf(o.TriangulationTolerance, 0) || o.TriangulationTolerance <= 0 {
		return fmt.Errorf("%w: triangulation_tolerance must be a positive number", ErrInvalidOptions)
	}
	if _, ok := ParseLevelOfDetail(string(o.LOD)); !ok {
		return fmt.Errorf("%w: lod must be one of low, medium, high", ErrInvalidOptions)
	}
	return nil
}

// JSON encodes the options for the converter.
func (o Options) JSON() string {
	b, err := json.Marshal(o)
	if err != nil {
		// only float NaN/Inf can fail here and Validate rejects those
		return "{}"
	}
	return string(b)
}
