package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KapJI/singbox-users/internal/reality"
)

func runPubkey(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("pubkey", env)
	generate := fs.BoolP("generate", "g", false, "generate a new REALITY key pair")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *generate {
		kp, err := reality.GenerateKeyPair()
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "PrivateKey: %s\nPublicKey: %s\n", kp.Private, kp.Public)
		return nil
	}

	if fs.NArg() != 1 {
		return errors.New("pubkey takes exactly one private key, or --generate")
	}
	public, err := reality.DerivePublicKey(strings.TrimSpace(fs.Arg(0)))
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}
	fmt.Fprintln(env.stdout, public)
	return nil
}
