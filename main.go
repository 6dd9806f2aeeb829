package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	_ "github.com/nathants/ddbstream/cmd/ddbstream"
	"github.com/nathants/ddbstream/lib"
)

func usage() {
	var fns []string
	for k := range lib.Commands {
		fns = append(fns, k)
	}
	sort.Strings(fns)
	for _, fn := range fns {
		description := ""
		args, ok := lib.Args[fn]
		if ok {
			description = strings.TrimSpace(strings.SplitN(strings.TrimSpace(args.Description()), "\n", 2)[0])
		}
		fmt.Printf("%-22s %s\n", fn, description)
	}
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	fn, ok := lib.Commands[cmd]
	if !ok {
		usage()
		os.Exit(1)
	}
	var args []string
	for _, a := range os.Args[1:] {
		if len(a) > 2 && a[0] == '-' && a[1] != '-' {
			for _, k := range a[1:] {
				args = append(args, fmt.Sprintf("-%s", string(k)))
			}
		} else {
			args = append(args, a)
		}
	}
	os.Args = args
	fn()
}
