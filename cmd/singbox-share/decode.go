package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/KapJI/singbox-users/internal/share"
)

const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatInner = "inner"
)

// decodedProfile is the YAML rendering of a share: the outer profile with its
// embedded client config expanded.
type decodedProfile struct {
	Profile *share.OuterProfile `yaml:"profile"`
	Client  *share.InnerProfile `yaml:"client"`
}

func runDecode(_ context.Context, env *cliEnv, args []string) error {
	fs := newFlagSet("decode", env)
	format := fs.StringP("format", "f", formatJSON, "output format: json, yaml or inner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch *format {
	case formatJSON, formatYAML, formatInner:
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	inputs := fs.Args()
	if len(inputs) == 0 {
		var err error
		if inputs, err = readTokens(env); err != nil {
			return err
		}
	}
	if len(inputs) == 0 {
		return errors.New("nothing to decode: pass a vpn:// link or QR tokens")
	}

	var outerJSON []byte
	var err error
	if strings.HasPrefix(inputs[0], share.Scheme) {
		if len(inputs) > 1 {
			return errors.New("decode takes a single vpn:// link")
		}
		outerJSON, err = share.Decode(inputs[0])
	} else {
		outerJSON, err = share.NewBuilder(share.DefaultOptions()).DecodeQR(inputs)
	}
	if err != nil {
		return err
	}

	if *format == formatJSON {
		_, err = env.stdout.Write(outerJSON)
		return err
	}

	outer, inner, err := share.Inspect(outerJSON)
	if err != nil {
		return err
	}
	if *format == formatInner {
		_, err = fmt.Fprint(env.stdout, outer.Containers[0].Xray.LastConfig)
		return err
	}
	enc := yaml.NewEncoder(env.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(decodedProfile{Profile: outer, Client: inner}); err != nil {
		return fmt.Errorf("render yaml: %w", err)
	}
	return enc.Close()
}

func readTokens(env *cliEnv) ([]string, error) {
	var tokens []string
	sc := bufio.NewScanner(env.stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			tokens = append(tokens, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return tokens, nil
}
