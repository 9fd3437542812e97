package main

import (
	"fmt"
	"io"
	"os"

	"rentchain/crypto"
)

// keystoreParams is swapped for the light scrypt cost in tests.
var keystoreParams = crypto.StandardKeystore

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr)
	out := fs.String("out", cli.keyPath, "keystore file to create")
	force := fs.Bool("force", false, "overwrite an existing keystore")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "out", *out) {
		return 1
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(stderr, "Error: %s already exists; pass --force to replace it\n", *out)
		return 1
	}
	pass, err := cli.pass.Get()
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass, keystoreParams); err != nil {
		return report(stdout, stderr, nil, fmt.Errorf("write keystore: %w", err))
	}
	return report(stdout, stderr, map[string]string{
		"address":  key.Address().String(),
		"hex":      key.Address().Hex(),
		"keystore": *out,
	}, nil)
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	path := fs.String("key", cli.keyPath, "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cli.keyPath = *path
	key, err := cli.signer()
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	return report(stdout, stderr, map[string]string{
		"address": key.Address().String(),
		"hex":     key.Address().Hex(),
	}, nil)
}
