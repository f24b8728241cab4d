package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/matiasleandrokruk/ifcglb/internal/mcpserver"
)

// runMCP serves the conversion tool on stdin/stdout. Logs go to stderr.
func runMCP(ctx context.Context, args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf configFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, log, err := cf.load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}
	defer log.Sync() //nolint:errcheck

	db, err := openStore(cfg.DBPath, log)
	if err != nil {
		log.Error("open history", zap.Error(err))
		return exitFailure
	}
	defer db.Close()

	svc := newService(db, newConverter(cfg, log), nil, cfg, log)
	if err := mcpserver.Run(ctx, svc, log); err != nil && ctx.Err() == nil {
		log.Error("mcp server stopped", zap.Error(err))
		return exitFailure
	}
	return exitOK
}
