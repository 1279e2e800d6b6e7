// Command singbox-share prints Amnezia share links and QR frame tokens for
// users of a sing-box VLESS+REALITY inbound.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

const usage = `Usage: singbox-share <command> [flags]

Commands:
  link     print the vpn:// share link for a client
  qr       print the QR frame tokens for a client, one per line
  decode   decode a vpn:// link or QR tokens back into the profile
  pubkey   derive a REALITY public key, or generate a key pair
  watch    print a fresh link every time the settings change
  version  print build information
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command func(ctx context.Context, env *cliEnv, args []string) error

var commands = map[string]command{
	"link":    runLink,
	"qr":      runQR,
	"decode":  runDecode,
	"pubkey":  runPubkey,
	"watch":   runWatch,
	"version": runVersion,
}

// cliEnv carries the process streams so commands can be driven from tests.
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 1
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 1
	}

	env := &cliEnv{stdin: stdin, stdout: stdout, stderr: stderr}
	if err := cmd(ctx, env, args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newFlagSet(name string, env *cliEnv) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	fs.SortFlags = false
	return fs
}

func runVersion(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("version", env)
	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "singbox-share %s (commit %s, built %s)\n", version, commit, buildTime)
	return nil
}
