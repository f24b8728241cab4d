// Package mcpserver exposes conversions as a Model Context Protocol tool so
// that agents can convert local IFC files over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/version"
)

// ToolName is the name agents call.
const ToolName = "convert_ifc_to_glb"

const serverName = "ifcglb"

// ConvertArgs are the tool arguments. Unset options take their defaults.
type ConvertArgs struct {
	InputPath              string   `json:"input_path" jsonschema:"path of the IFC file to convert"`
	OutputPath             string   `json:"output_path,omitempty" jsonschema:"path of the GLB file to write; defaults to the input path with a .glb extension"`
	Units                  string   `json:"units,omitempty" jsonschema:"length unit of the output, default meter"`
	TriangulationTolerance *float64 `json:"triangulation_tolerance,omitempty" jsonschema:"tessellation tolerance, positive, default 0.001"`
	WeldVertices           *bool    `json:"weld_vertices,omitempty" jsonschema:"merge coincident vertices, default true"`
	IncludeProperties      *bool    `json:"include_properties,omitempty" jsonschema:"embed IFC properties as glTF extras, default false"`
	LOD                    string   `json:"lod,omitempty" jsonschema:"level of detail: low, medium or high; default medium"`
}

// ConvertResult is the structured tool output.
type ConvertResult struct {
	ID         string `json:"id"`
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"status_code"`
	OutputPath string `json:"output_path"`
	DurationMs int64  `json:"duration_ms"`
	SizeBytes  int64  `json:"size_bytes"`
}

// Tools binds the conversion service to MCP tool handlers.
type Tools struct {
	svc *conversion.Service
	log *zap.Logger
}

// NewServer returns an MCP server with the conversion tool registered.
func NewServer(svc *conversion.Service, log *zap.Logger) *mcp.Server {
	if log == nil {
		log = zap.NewNop()
	}
	tools := &Tools{svc: svc, log: log}

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version.Version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: "Convert an IFC building model on the local filesystem into a binary glTF (GLB) file.",
	}, tools.Convert)
	return server
}

// Run serves the tool over stdin/stdout until ctx ends or the client disconnects.
func Run(ctx context.Context, svc *conversion.Service, log *zap.Logger) error {
	return NewServer(svc, log).Run(ctx, &mcp.StdioTransport{})
}

// Convert is the convert_ifc_to_glb handler. Conversion failures are tool
// errors; the record is still kept in the history.
func (t *Tools) Convert(ctx context.Context, _ *mcp.CallToolRequest, args ConvertArgs) (*mcp.CallToolResult, ConvertResult, error) {
	if strings.TrimSpace(args.InputPath) == "" {
		return nil, ConvertResult{}, fmt.Errorf("input_path is required")
	}
	opts, err := args.options()
	if err != nil {
		return nil, ConvertResult{}, err
	}

	out := args.OutputPath
	if out == "" {
		out = strings.TrimSuffix(args.InputPath, filepath.Ext(args.InputPath)) + ".glb"
	}

	rec, err := t.svc.Convert(ctx, conversion.ConvertInput{
		InputName:  filepath.Base(args.InputPath),
		InputPath:  args.InputPath,
		OutputPath: out,
		Options:    opts,
	})
	if err != nil {
		t.log.Warn("mcp conversion error", zap.String("input", args.InputPath), zap.Error(err))
		return nil, ConvertResult{}, err
	}

	result := ConvertResult{
		ID:         rec.ID,
		Outcome:    string(rec.Outcome),
		StatusCode: rec.StatusCode,
		OutputPath: rec.OutputPath,
		DurationMs: rec.DurationMs,
		SizeBytes:  rec.SizeBytes,
	}
	if !rec.OK() {
		return nil, result, fmt.Errorf("%s: %s", rec.Outcome, rec.Outcome.Message(rec.StatusCode))
	}
	return nil, result, nil
}

func (a ConvertArgs) options() (conversion.Options, error) {
	opts := conversion.DefaultOptions()
	if a.Units != "" {
		opts.Units = a.Units
	}
	if a.TriangulationTolerance != nil {
		opts.TriangulationTolerance = *a.TriangulationTolerance
	}
	if a.WeldVertices != nil {
		opts.WeldVertices = *a.WeldVertices
	}
	if a.IncludeProperties != nil {
		opts.IncludeProperties = *a.IncludeProperties
	}
	if a.LOD != "" {
		lod, ok := conversion.ParseLevelOfDetail(a.LOD)
		if !ok {
			return opts, fmt.Errorf("%w: lod must be one of low, medium, high", conversion.ErrInvalidOptions)
		}
		opts.LOD = lod
	}
	return opts, opts.Validate()
}
