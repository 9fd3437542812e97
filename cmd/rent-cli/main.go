package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"rentchain/cmd/internal/passphrase"
	"rentchain/crypto"
	"rentchain/rpc"
)

const (
	rpcURLEnv   = "RENT_RPC_URL"
	rpcTokenEnv = "RENT_RPC_TOKEN"
	keystoreEnv = "RENT_KEYSTORE"
	passEnv     = "RENT_KEYSTORE_PASS"

	defaultEndpoint = "http://127.0.0.1:8545"
)

// client talks JSON-RPC to rentd and signs envelopes with the operator key.
type client struct {
	endpoint string
	token    string
	keyPath  string
	http     *http.Client
	pass     *passphrase.Source

	key *crypto.PrivateKey
}

func newClient() *client {
	endpoint := strings.TrimSpace(os.Getenv(rpcURLEnv))
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &client{
		endpoint: endpoint,
		token:    strings.TrimSpace(os.Getenv(rpcTokenEnv)),
		keyPath:  strings.TrimSpace(os.Getenv(keystoreEnv)),
		http:     &http.Client{Timeout: 30 * time.Second},
		pass:     passphrase.NewSource(passEnv, ""),
	}
}

// cli is the process-wide client. Tests point it at an httptest server.
var cli = newClient()

func main() {
	args, err := applyGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	commands := map[string]func([]string, io.Writer, io.Writer) int{
		"keygen":   runKeygen,
		"address":  runAddress,
		"account":  runAccount,
		"status":   runStatus,
		"receipt":  runReceipt,
		"property": runPropertyCommand,
		"rental":   runRentalCommand,
		"escrow":   runEscrowCommand,
		"review":   runReviewCommand,
		"rewards":  runRewardsCommand,
		"admin":    runAdminCommand,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
			fmt.Fprintln(stdout, usage())
			return 0
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	return cmd(args[1:], stdout, stderr)
}

// applyGlobalFlags strips --rpc, --key and --token ahead of the command name.
func applyGlobalFlags(args []string) ([]string, error) {
	for len(args) > 0 {
		name, value, hasValue := strings.Cut(args[0], "=")
		var target *string
		switch name {
		case "--rpc", "-rpc":
			target = &cli.endpoint
		case "--key", "-key":
			target = &cli.keyPath
		case "--token", "-token":
			target = &cli.token
		default:
			return args, nil
		}
		if !hasValue {
			if len(args) < 2 {
				return nil, fmt.Errorf("%s requires a value", name)
			}
			value, args = args[1], args[1:]
		}
		*target = strings.TrimSpace(value)
		args = args[1:]
	}
	return args, nil
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpc.RPCError   `json:"error"`
}

// call invokes method with at most one positional parameter and decodes the
// result into out when out is non-nil.
func (c *client) call(method string, param interface{}, out interface{}) error {
	req := rpc.RPCRequest{JSONRPC: "2.0", Method: method, ID: 1}
	if param != nil {
		raw, err := json.Marshal(param)
		if err != nil {
			return err
		}
		req.Params = []json.RawMessage{raw}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

func (c *client) signer() (*crypto.PrivateKey, error) {
	if c.key != nil {
		return c.key, nil
	}
	if c.keyPath == "" {
		return nil, fmt.Errorf("no key configured; pass --key or set %s", keystoreEnv)
	}
	pass, err := c.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(c.keyPath, pass)
	if err != nil {
		return nil, fmt.Errorf("unlock %s: %w", c.keyPath, err)
	}
	c.key = key
	return key, nil
}

// send signs fields for method with the account's current nonce.
func (c *client) send(method string, fields interface{}, out interface{}) error {
	key, err := c.signer()
	if err != nil {
		return err
	}
	var acct rpc.AccountResult
	if err := c.call("account_get", map[string]string{"address": key.Address().String()}, &acct); err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	env, err := rpc.SignEnvelope(method, key, acct.Nonce, fields)
	if err != nil {
		return err
	}
	return c.call(method, env, out)
}

func printJSON(w io.Writer, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "%v\n", v)
		return
	}
	fmt.Fprintln(w, string(data))
}

// report prints the result of a call or its error and returns the exit code.
func report(stdout, stderr io.Writer, result interface{}, err error) int {
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	printJSON(stdout, result)
	return 0
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// requireFlags takes name/value pairs and reports the first empty one.
func requireFlags(stderr io.Writer, fs *flag.FlagSet, pairs ...string) bool {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			fmt.Fprintf(stderr, "Error: --%s is required\n", pairs[i])
			fs.Usage()
			return false
		}
	}
	return true
}

func runAccount(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("account", stderr)
	addr := fs.String("address", "", "bech32 address (defaults to the configured key)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *addr == "" {
		key, err := cli.signer()
		if err != nil {
			return report(stdout, stderr, nil, err)
		}
		*addr = key.Address().String()
	}
	var out rpc.AccountResult
	err := cli.call("account_get", map[string]string{"address": *addr}, &out)
	return report(stdout, stderr, out, err)
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	if len(args) != 0 {
		fmt.Fprintln(stderr, "Usage: rent-cli status")
		return 1
	}
	var out rpc.StatusResult
	err := cli.call("node_status", nil, &out)
	return report(stdout, stderr, out, err)
}

func runReceipt(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: rent-cli receipt <tx-hash>")
		return 1
	}
	var out json.RawMessage
	err := cli.call("tx_receipt", map[string]string{"hash": args[0]}, &out)
	return report(stdout, stderr, out, err)
}

func usage() string {
	return strings.TrimSpace(`
Usage: rent-cli [--rpc URL] [--key KEYSTORE] [--token JWT] <command> [args]

Commands:
  keygen --out FILE                 create an encrypted keystore
  address [--key FILE]              print the keystore address
  account [--address ADDR]          show balance and nonce
  status                            show the node head
  receipt <tx-hash>                 show a transaction receipt
  property <create|update|availability|deactivate|get|list>
  rental   <request|create|approve|reject|sign|complete|cancel|expire|get|list>
  escrow   <deposit|pay-rent|release|withdraw|get|history|verify|export>
  review   <submit|can-submit|get|list>
  rewards  <balance|config|set-config|mint|burn|transfer>
  admin    <pause|unpause|token>

Environment:
  RENT_RPC_URL, RENT_KEYSTORE, RENT_KEYSTORE_PASS, RENT_RPC_TOKEN`)
}
