package main

import (
	"fmt"
	"io"

	"rentchain/rpc"
)

func runReviewCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, reviewUsage())
		return 1
	}
	switch args[0] {
	case "submit":
		return runReviewSubmit(args[1:], stdout, stderr)
	case "can-submit":
		return runReviewCanSubmit(args[1:], stdout, stderr)
	case "get":
		return runReviewGet(args[1:], stdout, stderr)
	case "list":
		return runReviewList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown review subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, reviewUsage())
		return 1
	}
}

func runReviewSubmit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("review submit", stderr)
	id := fs.String("agreement", "", "completed agreement id")
	rating := fs.Uint("rating", 0, "rating from 1 to 5")
	comment := fs.String("comment", "", "review text")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "agreement", *id) {
		return 1
	}
	if *rating > 255 {
		fmt.Fprintln(stderr, "Error: --rating out of range")
		return 1
	}
	var out rpc.ReviewResult
	err := cli.send("review_submit", map[string]interface{}{
		"agreementId": *id,
		"rating":      *rating,
		"comment":     *comment,
	}, &out)
	return report(stdout, stderr, out, err)
}

func runReviewCanSubmit(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("review can-submit", stderr)
	id := fs.String("agreement", "", "agreement id")
	reviewer := fs.String("reviewer", "", "reviewer address (defaults to the configured key)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "agreement", *id) {
		return 1
	}
	if *reviewer == "" {
		key, err := cli.signer()
		if err != nil {
			return report(stdout, stderr, nil, err)
		}
		*reviewer = key.Address().String()
	}
	var out map[string]bool
	err := cli.call("review_canSubmit", map[string]string{"reviewer": *reviewer, "agreementId": *id}, &out)
	return report(stdout, stderr, out, err)
}

func runReviewGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("review get", stderr)
	id := fs.String("agreement", "", "agreement id")
	role := fs.String("role", "", "Tenant or Landlord")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "agreement", *id, "role", *role) {
		return 1
	}
	var out rpc.ReviewResult
	err := cli.call("review_get", map[string]string{"agreementId": *id, "role": *role}, &out)
	return report(stdout, stderr, out, err)
}

func runReviewList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("review list", stderr)
	id := fs.String("agreement", "", "reviews of one agreement")
	user := fs.String("user", "", "reviews received by an address")
	reviewer := fs.String("reviewer", "", "reviews written by an address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	switch {
	case *id != "":
		var out []rpc.ReviewResult
		err := cli.call("review_listByAgreement", map[string]string{"agreementId": *id}, &out)
		return report(stdout, stderr, out, err)
	case *user != "":
		var out rpc.UserReviewsResult
		err := cli.call("review_listByUser", map[string]string{"address": *user}, &out)
		return report(stdout, stderr, out, err)
	case *reviewer != "":
		var out []rpc.ReviewResult
		err := cli.call("review_listByReviewer", map[string]string{"address": *reviewer}, &out)
		return report(stdout, stderr, out, err)
	default:
		fmt.Fprintln(stderr, "Error: --agreement, --user or --reviewer is required")
		return 1
	}
}

func reviewUsage() string {
	return `Usage: rent-cli review <subcommand> [flags]
  submit     --agreement --rating [--comment]
  can-submit --agreement [--reviewer]
  get        --agreement --role
  list       --agreement ID | --user ADDR | --reviewer ADDR`
}
