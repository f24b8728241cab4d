package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/matiasleandrokruk/ifcglb/internal/domain/conversion"
	"github.com/matiasleandrokruk/ifcglb/internal/infra/sqlite"
)

// boolFlag accepts the same spellings as the HTTP query options.
type boolFlag struct {
	value bool
	set   bool
}

func (b *boolFlag) String() string   { return strconv.FormatBool(b.value) }
func (b *boolFlag) IsBoolFlag() bool { return true }

func (b *boolFlag) Set(s string) error {
	v, ok := conversion.ParseBool(s)
	if !ok {
		return fmt.Errorf("invalid boolean %q", s)
	}
	b.value, b.set = v, true
	return nil
}

// runConvert converts one file. It exits with the converter status code when
// the converter reports a failure.
func runConvert(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf configFlags
	cf.register(fs)

	defaults := conversion.DefaultOptions()
	units := fs.String("units", defaults.Units, "output length unit")
	tolerance := fs.Float64("tolerance", defaults.TriangulationTolerance, "triangulation tolerance (> 0)")
	lod := fs.String("lod", string(defaults.LOD), "level of detail: low, medium, high")
	converterName := fs.String("converter", "", "native or builtin (default from CONVERTER)")
	dbPath := fs.String("db", sqlite.MemoryPath, "record the conversion in this history database")
	weld := &boolFlag{value: defaults.WeldVertices}
	props := &boolFlag{value: defaults.IncludeProperties}
	fs.Var(weld, "weld-vertices", "merge coincident vertices")
	fs.Var(props, "include-properties", "embed IFC properties")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return exitUsage
	}
	if len(positional) != 2 {
		fmt.Fprintln(errOut, "usage: ifcglb convert <in.ifc> <out.glb> [options]") //nolint:errcheck
		return exitUsage
	}

	level, ok := conversion.ParseLevelOfDetail(*lod)
	if !ok {
		fmt.Fprintf(errOut, "error: invalid --lod %q\n", *lod) //nolint:errcheck
		return exitUsage
	}
	opts := conversion.Options{
		Units:                  *units,
		TriangulationTolerance: *tolerance,
		WeldVertices:           weld.value,
		IncludeProperties:      props.value,
		LOD:                    level,
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitUsage
	}

	cfg, log, err := cf.load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}
	defer log.Sync() //nolint:errcheck
	if *converterName != "" {
		cfg.Converter = strings.ToLower(*converterName)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
			return exitUsage
		}
	}

	db, err := openStore(*dbPath, log)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}
	defer db.Close()

	svc := newService(db, newConverter(cfg, log), nil, cfg, log)
	in, outPath := positional[0], positional[1]
	rec, err := svc.Convert(ctx, conversion.ConvertInput{
		InputName:  filepath.Base(in),
		InputPath:  in,
		OutputPath: outPath,
		Options:    opts,
	})
	if err != nil && !errors.Is(err, conversion.ErrConverterUnavailable) {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.Encode(rec) //nolint:errcheck

	switch {
	case err != nil:
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	case !rec.OK() && rec.StatusCode != conversion.StatusOK:
		fmt.Fprintln(errOut, rec.Outcome.Message(rec.StatusCode)) //nolint:errcheck
		return rec.StatusCode
	case !rec.OK():
		fmt.Fprintf(errOut, "error: %s\n", rec.Error) //nolint:errcheck
		return exitFailure
	}
	return exitOK
}

// parseInterspersed lets flags follow positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}
