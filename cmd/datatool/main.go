// Copyright 2025 Alpen Labs
//
// datatool is the rollup's parameter/key-generation CLI. Key
// derivation and genesis-parameter generation are out of the
// consensus kernel's scope; this binary names the subcommand surface
// so operator tooling has a stable entrypoint without pulling key
// management into the kernel itself.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

var subcommands = map[string]string{
	"genxpriv":      "derive an extended private key",
	"genseqpubkey":  "derive the sequencer's public key from a private key",
	"genseqprivkey": "generate a fresh sequencer private key",
	"genparams":     "generate rollup genesis parameters",
	"genl1view":     "generate an initial L1 view for a genesis height",
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: datatool <subcommand> [--output <path>]")
		fmt.Fprintln(os.Stderr, "subcommands:")
		for _, name := range []string{"genxpriv", "genseqpubkey", "genseqprivkey", "genparams", "genl1view"} {
			fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, subcommands[name])
		}
	}

	output := flag.String("output", "", "write result to this path instead of stdout")
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	if _, ok := subcommands[name]; !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand %q\n", name)
		flag.Usage()
		os.Exit(1)
	}

	// Key derivation and parameter generation are out of the kernel's
	// scope (spec non-goal); this stub reports the shape of the
	// surface without implementing the cryptographic material.
	result := map[string]string{
		"subcommand": name,
		"status":     "not implemented: key derivation and parameter generation live outside the consensus kernel",
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(string(data))
}
