package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	pkgauth "github.com/matiasleandrokruk/ifcglb/pkg/auth"
)

// runToken prints a bearer token for --subject.
func runToken(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(errOut)
	subject := fs.String("subject", "", "caller name stored in the token (required)")
	ttl := fs.Duration("ttl", pkgauth.DefaultTokenTTL, "token lifetime")
	secret := fs.String("secret", "", "signing secret (default JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *subject == "" {
		fmt.Fprintln(errOut, "error: --subject is required") //nolint:errcheck
		return exitUsage
	}
	if *secret == "" {
		*secret = os.Getenv("JWT_SECRET")
	}

	token, err := pkgauth.GenerateJWT(*subject, []byte(*secret), *ttl)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v (set JWT_SECRET or --secret)\n", err) //nolint:errcheck
		return exitFailure
	}
	fmt.Fprintln(out, token) //nolint:errcheck
	return exitOK
}

// runHashKey prints the bcrypt hash of the given key. Without an argument a
// new key is generated and printed together with its hash.
func runHashKey(args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash-key", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(errOut, "usage: ifcglb hash-key [key]") //nolint:errcheck
		return exitUsage
	}

	key := fs.Arg(0)
	generated := key == ""
	if generated {
		var err error
		if key, err = pkgauth.GenerateAPIKey(); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
			return exitFailure
		}
	}
	hash, err := pkgauth.HashAPIKey(key)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err) //nolint:errcheck
		return exitFailure
	}

	if generated {
		fmt.Fprintf(out, "key:  %s\n", key) //nolint:errcheck
	}
	fmt.Fprintf(out, "hash: %s\n", hash) //nolint:errcheck
	return exitOK
}
