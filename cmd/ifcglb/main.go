// ifcglb converts IFC building models to binary glTF through a native
// converter library, as an HTTP service, a CLI and an MCP tool server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/matiasleandrokruk/ifcglb/internal/version"
)

// Exit codes shared by every command.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(ctx, args, out, errOut)
	case "convert":
		return runConvert(ctx, args, out, errOut)
	case "mcp":
		return runMCP(ctx, args, errOut)
	case "token":
		return runToken(args, out, errOut)
	case "hash-key":
		return runHashKey(args, out, errOut)
	case "version", "--version", "-version":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return exitOK
	case "help", "--help", "-help", "-h":
		printHelp(out)
		return exitOK
	default:
		fmt.Fprintf(errOut, "unknown command %q\n\n", cmd) //nolint:errcheck
		printHelp(errOut)
		return exitUsage
	}
}

func printHelp(out io.Writer) {
	helpText := `ifcglb - IFC to GLB conversion service

Usage:
  ifcglb [command] [options]

Commands:
  serve        Start the HTTP server (default)
  convert      Convert one file: ifcglb convert <in.ifc> <out.glb> [options]
  mcp          Serve the convert_ifc_to_glb tool over MCP stdio
  token        Issue a bearer token signed with JWT_SECRET
  hash-key     Hash an API key for API_KEY_HASHES (generates one if omitted)
  version      Show version information
  help         Show this help message

Examples:
  ifcglb serve --config /etc/ifcglb.yaml
  ifcglb convert tower.ifc tower.glb --lod high --units millimeter
  ifcglb token --subject viewer --ttl 720h
  ifcglb hash-key`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
