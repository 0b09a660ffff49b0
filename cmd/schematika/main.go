// Command schematika runs Schematika source, either a file named on
// the command line or an interactive read-eval-print loop over
// stdin.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/schematika-lang/schematika"
)

func main() {
	if len(os.Args) > 1 {
		runFile(os.Args[1])
		return
	}
	repl()
}

func runFile(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	in := schematika.NewInterpreter()
	in.SetFile(path)
	v, err := in.Run(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, in.Report(err))
		os.Exit(1)
	}
	if v != nil {
		fmt.Println(in.Format(v))
	}
}

func repl() {
	in := schematika.NewInterpreter()
	in.SetFile("<stdin>")
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stderr, "> ")
	for scanner.Scan() {
		line := append(scanner.Bytes(), '\n')
		results, err := in.RunChunk(line, false)
		if err != nil {
			fmt.Fprintln(os.Stderr, in.Report(err))
		}
		for _, v := range results {
			fmt.Println(in.Format(v))
		}
		fmt.Fprint(os.Stderr, "> ")
	}
	if results, err := in.RunChunk(nil, true); err != nil {
		fmt.Fprintln(os.Stderr, in.Report(err))
	} else {
		for _, v := range results {
			fmt.Println(in.Format(v))
		}
	}
	fmt.Fprintln(os.Stderr)
}
