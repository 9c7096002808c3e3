package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-clerk/internal/expense"
	"github.com/zombor/receipt-clerk/internal/parsing"
)

var (
	header  = color.New(color.BgBlue, color.FgWhite)
	price   = color.New(color.FgGreen)
	total   = color.New(color.BgGreen, color.FgBlack)
	warning = color.New(color.BgRed, color.FgWhite)
)

func main() {
	fs := ff.NewFlagSet("receipt-parse")
	var (
		asJSON  = fs.BoolLong("json", "Print the parsed receipt as JSON")
		noColor = fs.BoolLong("no-color", "Disable colored output")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("RECEIPT_PARSE")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs, "receipt-parse [FLAGS] [FILE]"))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *noColor {
		color.NoColor = true
	}

	text, err := readInput(fs.GetArgs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	receipt := parsing.Parse(text)
	issues := parsing.Validate(receipt)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]interface{}{"receipt": receipt, "issues": issues}); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	render(os.Stdout, receipt, issues)
}

// readInput reads the receipt text from the first argument, or stdin
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func render(w io.Writer, r *expense.Receipt, issues []string) {
	header.Fprintf(w, " %-40s ", r.Store)
	fmt.Fprintln(w)

	for i, item := range r.Items {
		fmt.Fprintf(w, "%3d. %-40s ", i+1, item.RawName)
		price.Fprintf(w, "%9s", item.Price.StringFixed(2))
		fmt.Fprintln(w)
	}

	total.Fprintf(w, " %-40s %9s ", "TOTAL", r.Total.StringFixed(2))
	fmt.Fprintln(w)

	for _, issue := range issues {
		warning.Fprintf(w, " ! %s ", issue)
		fmt.Fprintln(w)
	}
}
