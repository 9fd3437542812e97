package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"rentchain/rpc"
)

const jwtSecretEnv = "RENT_RPC_JWT_SECRET"

func runAdminCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	switch args[0] {
	case "pause":
		return runAdminPause(args[1:], "admin_pause", stdout, stderr)
	case "unpause":
		return runAdminPause(args[1:], "admin_unpause", stdout, stderr)
	case "token":
		return runAdminToken(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown admin subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
}

func runAdminPause(args []string, method string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, adminUsage())
		return 1
	}
	var out rpc.StatusResult
	err := cli.send(method, map[string]string{"module": args[0]}, &out)
	return report(stdout, stderr, out, err)
}

// runAdminToken mints a bearer token for admin_* calls from the shared HMAC
// secret rentd reads.
func runAdminToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("admin token", stderr)
	subject := fs.String("subject", "operator", "token subject")
	issuer := fs.String("issuer", "rentchain", "token issuer")
	audience := fs.String("audience", "", "token audience")
	ttl := fs.Duration("ttl", 15*time.Minute, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	secret := os.Getenv(jwtSecretEnv)
	if secret == "" {
		fmt.Fprintf(stderr, "Error: %s must be set\n", jwtSecretEnv)
		return 1
	}
	token, err := rpc.IssueAdminToken(rpc.AuthConfig{
		HMACSecret: secret,
		Issuer:     *issuer,
		Audience:   *audience,
	}, *subject, *ttl)
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func adminUsage() string {
	return `Usage: rent-cli admin <subcommand>
  pause   <module>   halt property, rental, escrow, review or rewards
  unpause <module>
  token   [--subject --issuer --audience --ttl]   print a bearer token`
}
