package main

import (
	"flag"
	"fmt"
	"io"

	"rentchain/rpc"
)

func runPropertyCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, propertyUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runPropertyListing(args[1:], "property_create", stdout, stderr)
	case "update":
		return runPropertyListing(args[1:], "property_update", stdout, stderr)
	case "availability":
		return runPropertyAvailability(args[1:], stdout, stderr)
	case "deactivate":
		return runPropertyDeactivate(args[1:], stdout, stderr)
	case "get":
		return runPropertyGet(args[1:], stdout, stderr)
	case "list":
		return runPropertyList(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown property subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, propertyUsage())
		return 1
	}
}

type listingFlags struct {
	id, owner, title, description, location, image string
	price, deposit                                 string
	minStay, maxStay                               uint
}

func (l *listingFlags) register(fs *flag.FlagSet, update bool) {
	if update {
		fs.StringVar(&l.id, "id", "", "property id")
	} else {
		fs.StringVar(&l.owner, "owner", "", "owner address (defaults to the signer)")
	}
	fs.StringVar(&l.title, "title", "", "listing title")
	fs.StringVar(&l.description, "description", "", "listing description")
	fs.StringVar(&l.location, "location", "", "property location")
	fs.StringVar(&l.image, "image", "", "image URL")
	fs.StringVar(&l.price, "price", "", "monthly rent in base units (supports 5e9 shorthand)")
	fs.StringVar(&l.deposit, "deposit", "0", "security deposit in base units")
	fs.UintVar(&l.minStay, "min-stay", 30, "minimum stay in days")
	fs.UintVar(&l.maxStay, "max-stay", 365, "maximum stay in days")
}

func (l *listingFlags) fields() (map[string]interface{}, error) {
	price, err := parseAmount(l.price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	deposit, err := parseAmount(l.deposit)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	fields := map[string]interface{}{
		"title":           l.title,
		"description":     l.description,
		"location":        l.location,
		"pricePerMonth":   price,
		"securityDeposit": deposit,
		"minStayDays":     l.minStay,
		"maxStayDays":     l.maxStay,
		"imageUrl":        l.image,
	}
	if l.id != "" {
		fields["id"] = l.id
	}
	if l.owner != "" {
		fields["owner"] = l.owner
	}
	return fields, nil
}

func runPropertyListing(args []string, method string, stdout, stderr io.Writer) int {
	update := method == "property_update"
	fs := newFlagSet(method, stderr)
	var l listingFlags
	l.register(fs, update)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if update && !requireFlags(stderr, fs, "id", l.id) {
		return 1
	}
	if !requireFlags(stderr, fs, "title", l.title, "location", l.location, "price", l.price) {
		return 1
	}
	fields, err := l.fields()
	if err != nil {
		return report(stdout, stderr, nil, err)
	}
	var out rpc.PropertyResult
	err = cli.send(method, fields, &out)
	return report(stdout, stderr, out, err)
}

func runPropertyAvailability(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("property availability", stderr)
	id := fs.String("id", "", "property id")
	available := fs.Bool("available", true, "whether the property accepts rental requests")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "id", *id) {
		return 1
	}
	var out rpc.PropertyResult
	err := cli.send("property_setAvailability", map[string]interface{}{"id": *id, "available": *available}, &out)
	return report(stdout, stderr, out, err)
}

func runPropertyDeactivate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("property deactivate", stderr)
	id := fs.String("id", "", "property id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if !requireFlags(stderr, fs, "id", *id) {
		return 1
	}
	var out rpc.PropertyResult
	err := cli.send("property_deactivate", map[string]string{"id": *id}, &out)
	return report(stdout, stderr, out, err)
}

func runPropertyGet(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: rent-cli property get <id>")
		return 1
	}
	var out rpc.PropertyResult
	err := cli.call("property_get", map[string]string{"id": args[0]}, &out)
	return report(stdout, stderr, out, err)
}

func runPropertyList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("property list", stderr)
	owner := fs.String("owner", "", "list every property of this owner instead of available ones")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var out []rpc.PropertyResult
	var err error
	if *owner != "" {
		err = cli.call("property_listByOwner", map[string]string{"address": *owner}, &out)
	} else {
		err = cli.call("property_listAvailable", nil, &out)
	}
	return report(stdout, stderr, out, err)
}

func propertyUsage() string {
	return `Usage: rent-cli property <subcommand> [flags]
  create       --title --location --price [--deposit --min-stay --max-stay --description --image --owner]
  update       --id plus the create flags
  availability --id [--available=false]
  deactivate   --id
  get          <id>
  list         [--owner ADDR]`
}
