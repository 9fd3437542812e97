package main

import (
	"fmt"
	"io"

	"rentchain/rpc"
)

func runRentalCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, rentalUsage())
		return 1
	}
	transitions := map[string]string{
		"approve":  "rental_approve",
		"reject":   "rental_reject",
		"sign":     "rental_sign",
		"complete": "rental_complete",
		"cancel":   "rental_cancel",
		"expire":   "rental_expire",
	}
	if method, ok := transitions[args[0]]; ok {
		return runRentalTransition(args[1:], method, stdout, stderr)
	}
	switch args[0] {
	case "request":
		return runRentalOpen(args[1:], "rental_request", stdout, stderr)
	case "create":
		return runRentalOpen(args[1:], "rental_create", stdout, stderr)
	case "get":
		return runRentalGet(args[1:], stdout, stderr)
	case "list":
		return runRentalList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rental subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, rentalUsage())
		return 1
	}
}

// runRentalOpen serves both the tenant request and the landlord-drafted
// agreement; only the latter names a tenant.
func runRentalOpen(args []string, method string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	id := fs.String("id", "", "agreement id (generated when empty)")
	propertyID := fs.String("property", "", "property id")
	start := fs.String("start", "", "start date (unix seconds, YYYY-MM-DD or RFC3339)")
	end := fs.String("end", "", "end date")
	tenant := ""
	if method == "rental_create" {
		fs.StringVar(&tenant, "tenant", "", "tenant address")
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "property", *propertyID, "start", *start, "end", *end) {
		return 1
	}
	if method == "rental_create" && !requireFlags(stderr, fs, "tenant", tenant) {
		return 1
	}
	startDate, err := parseDate(*start)
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	endDate, err := parseDate(*end)
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	if *id == "" {
		*id = newAgreementID(*propertyID)
	}
	fields := map[string]interface{}{
		"id":         *id,
		"propertyId": *propertyID,
		"startDate":  startDate,
		"endDate":    endDate,
	}
	if tenant != "" {
		fields["tenant"] = tenant
	}
	var out rpc.AgreementResult
	err = cli.send(method, fields, &out)
	return report(stdout, stderr, out, err)
}

func runRentalTransition(args []string, method string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "Usage: rent-cli rental %s <agreement-id>\n", method[len("rental_"):])
		return 1
	}
	var out rpc.AgreementResult
	err := cli.send(method, map[string]string{"id": args[0]}, &out)
	return report(stdout, stderr, out, err)
}

func runRentalGet(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: rent-cli rental get <agreement-id>")
		return 1
	}
	var out rpc.AgreementResult
	err := cli.call("rental_get", map[string]string{"id": args[0]}, &out)
	return report(stdout, stderr, out, err)
}

func runRentalList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("rental list", stderr)
	tenant := fs.String("tenant", "", "agreements where ADDR is the tenant")
	landlord := fs.String("landlord", "", "agreements where ADDR is the landlord")
	propertyID := fs.String("property", "", "agreements for a property")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var (
		out []rpc.AgreementResult
		err error
	)
	switch {
	case *tenant != "":
		err = cli.call("rental_listByTenant", map[string]string{"address": *tenant}, &out)
	case *landlord != "":
		err = cli.call("rental_listByLandlord", map[string]string{"address": *landlord}, &out)
	case *propertyID != "":
		err = cli.call("rental_listByProperty", map[string]string{"id": *propertyID}, &out)
	default:
		fmt.Fprintln(stderr, "Error: one of --tenant, --landlord or --property is required")
		return 1
	}
	return report(stdout, stderr, out, err)
}

func rentalUsage() string {
	return `Usage: rent-cli rental <subcommand> [flags]
  request  --property --start --end [--id]           tenant asks for a lease
  create   --property --tenant --start --end [--id]  landlord drafts a lease
  approve|reject|sign|complete|cancel|expire <agreement-id>
  get      <agreement-id>
  list     --tenant ADDR | --landlord ADDR | --property ID`
}
