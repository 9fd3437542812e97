package main

import (
	"fmt"
	"io"

	"rentchain/rpc"
)

func runRewardsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
	switch args[0] {
	case "balance":
		return runRewardsBalance(args[1:], stdout, stderr)
	case "config":
		var out rpc.RewardsConfigResult
		err := cli.call("rewards_config", nil, &out)
		return report(stdout, stderr, out, err)
	case "set-config":
		return runRewardsSetConfig(args[1:], stdout, stderr)
	case "mint":
		return runRewardsMove(args[1:], "rewards_mint", "to", stdout, stderr)
	case "burn":
		return runRewardsMove(args[1:], "rewards_burn", "account", stdout, stderr)
	case "transfer":
		return runRewardsMove(args[1:], "rewards_transfer", "to", stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rewards subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, rewardsUsage())
		return 1
	}
}

func runRewardsBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("rewards balance", stderr)
	addr := fs.String("address", "", "holder address (defaults to the configured key)")
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
	var out rpc.RewardsBalanceResult
	err := cli.call("rewards_balance", map[string]string{"address": *addr}, &out)
	return report(stdout, stderr, out, err)
}

func runRewardsSetConfig(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("rewards set-config", stderr)
	first := fs.String("first-payment", "", "reward for a tenant's first rent payment")
	review := fs.String("review", "", "reward per submitted review")
	bonus := fs.String("mutual-bonus", "", "bonus when both parties reviewed")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "first-payment", *first, "review", *review, "mutual-bonus", *bonus) {
		return 1
	}
	fields := make(map[string]string, 3)
	for name, raw := range map[string]string{
		"firstPaymentReward": *first,
		"reviewReward":       *review,
		"mutualReviewBonus":  *bonus,
	} {
		amount, err := parseAmount(raw)
		if err != nil {
			return report(stdout, stderr, nil, fmt.Errorf("%s: %w", name, err))
		}
		fields[name] = amount
	}
	var out rpc.RewardsConfigResult
	err := cli.send("rewards_setConfig", fields, &out)
	return report(stdout, stderr, out, err)
}

// runRewardsMove serves mint, burn and transfer. field names the address the
// method expects.
func runRewardsMove(args []string, method, field string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	addr := fs.String(field, "", "target address")
	amount := fs.String("amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, field, *addr, "amount", *amount) {
		return 1
	}
	value, err := parseAmount(*amount)
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	var out rpc.OKResult
	err = cli.send(method, map[string]string{field: *addr, "amount": value}, &out)
	return report(stdout, stderr, out, err)
}

func rewardsUsage() string {
	return `Usage: rent-cli rewards <subcommand> [flags]
  balance    [--address]
  config
  set-config --first-payment --review --mutual-bonus   (admin)
  mint       --to --amount                             (admin)
  burn       --account --amount
  transfer   --to --amount`
}
