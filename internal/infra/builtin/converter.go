// Package builtin is a pure-Go conversion backend used when the native
// converter library is not deployed. It validates the input, honours the
// converter status code contract and writes an empty-scene GLB asset.
package builtin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/glb"
)

// Generator is written into asset.generator of every produced file.
const Generator = "ifcglb-builtin"

// stepMagic opens every ISO 10303-21 (STEP physical file) document, which
// is the encoding of .ifc files.
var stepMagic = []byte("ISO-10303-21;")

// Converter implements conversion.Converter.
type Converter struct{}

// New returns the builtin backend.
func New() Converter { return Converter{} }

// Name identifies the backend in conversion records.
func (Converter) Name() string { return "builtin" }

// Convert never returns a non-nil error except for a cancelled ctx; every
// failure is reported through the status code.
func (Converter) Convert(ctx context.Context, inputPath, outputPath, optionsJSON string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if code := checkInput(inputPath); code != conversion.StatusOK {
		return code, nil
	}

	opts, err := conversion.ParseOptionsJSON([]byte(optionsJSON))
	if err != nil || opts.Validate() != nil {
		return conversion.StatusInvalidOptions, nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return conversion.StatusWriteFailed, nil
	}

	doc := glb.NewDocument(Generator)
	doc.Asset.Extras = map[string]any{
		"units":                   opts.Units,
		"lod":                     string(opts.LOD),
		"triangulation_tolerance": opts.TriangulationTolerance,
	}
	if err := writeGLB(outputPath, doc); err != nil {
		return conversion.StatusWriteFailed, nil
	}
	return conversion.StatusOK, nil
}

// writeGLB streams doc into path, leaving no partial file behind on failure.
func writeGLB(path string, doc glb.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := glb.Write(f, doc, nil); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

func checkInput(path string) int {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return conversion.StatusInputNotFound
	}
	if err != nil {
		return conversion.StatusParseFailed
	}
	defer f.Close()

	head := make([]byte, 64)
	n, _ := bufio.NewReader(f).Read(head)
	// a UTF-8 BOM and leading whitespace are tolerated before the header
	content := bytes.TrimLeft(bytes.TrimPrefix(head[:n], []byte("\xef\xbb\xbf")), " \t\r\n")
	if !bytes.HasPrefix(content, stepMagic) {
		return conversion.StatusParseFailed
	}
	return conversion.StatusOK
}
