// cmd/typeanalyze/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/llir/llvm/asm"
	"github.com/mattn/go-isatty"

	"sentra-typeanalysis/internal/diag"
	"sentra-typeanalysis/internal/hostir"
	"sentra-typeanalysis/internal/ipcache"
	"sentra-typeanalysis/internal/lattice"
	"sentra-typeanalysis/internal/reversemode"
	"sentra-typeanalysis/internal/summary"
	"sentra-typeanalysis/internal/typeanalysis"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("typeanalyze %s\n", version)
	case "analyze":
		if err := analyzeCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "reverse":
		if err := reverseCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("typeanalyze - intra/inter-procedural scalar-kind type analysis for LLVM IR")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  typeanalyze analyze <file.ll> [--func NAME] [--verbose] [--color]")
	fmt.Println("  typeanalyze reverse <file.ll> --func NAME [--active-args i,j,...] [--active-ret] [--verbose]")
	fmt.Println()
	fmt.Println("  typeanalyze --version")
	fmt.Println("  typeanalyze --help")
}

type flagSet struct {
	verbose     bool
	color       bool
	funcName    string
	activeArgs  map[int]bool
	activeRet   bool
	rest        []string
}

func parseFlags(args []string) flagSet {
	fs := flagSet{activeArgs: make(map[int]bool)}
	var rest []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--verbose":
			fs.verbose = true
		case args[i] == "--color":
			fs.color = true
		case args[i] == "--active-ret":
			fs.activeRet = true
		case args[i] == "--func" && i+1 < len(args):
			fs.funcName = args[i+1]
			i++
		case args[i] == "--active-args" && i+1 < len(args):
			for _, part := range strings.Split(args[i+1], ",") {
				if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
					fs.activeArgs[n] = true
				}
			}
			i++
		default:
			rest = append(rest, args[i])
		}
	}
	fs.rest = rest
	if !fs.color {
		fs.color = isatty.IsTerminal(os.Stdout.Fd())
	}
	return fs
}

func analyzeCommand(args []string) error {
	fs := parseFlags(args)
	if len(fs.rest) == 0 {
		return fmt.Errorf("analyze requires a .ll file argument")
	}
	path := fs.rest[0]

	irModule, err := asm.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	module := hostir.NewModule(irModule)
	dl := hostir.NewDataLayout()
	opts := typeanalysis.Options{Verbose: fs.verbose, Trace: traceToStderr}
	cache := ipcache.New(module, dl, opts)

	funcs := module.Functions()
	if fs.funcName != "" {
		funcs = filterByName(funcs, fs.funcName)
		if len(funcs) == 0 {
			return fmt.Errorf("function %q not found (or has no body) in %s", fs.funcName, path)
		}
	}

	classified := 0
	for _, fn := range funcs {
		sum := summary.New(len(fn.Params()), lattice.OffsetMap{})
		for i := range sum.Args {
			sum.Args[i] = lattice.FromSingle(nil, lattice.Anything)
		}
		a := typeanalysis.NewAnalyzer(fn, sum, cache, dl, opts)
		h, err := a.Run(context.Background())
		if err != nil {
			if te, ok := err.(*diag.TypeError); ok && fs.verbose {
				fmt.Fprint(os.Stderr, te.Verbose())
			}
			return err
		}
		printFunctionFacts(fn, h, fs)
		classified += len(fn.AllValues())
	}

	fmt.Printf("\n%s values classified across %s function(s)\n",
		humanize.Comma(int64(classified)), humanize.Comma(int64(len(funcs))))
	return nil
}

func reverseCommand(args []string) error {
	fs := parseFlags(args)
	if len(fs.rest) == 0 {
		return fmt.Errorf("reverse requires a .ll file argument")
	}
	if fs.funcName == "" {
		return fmt.Errorf("reverse requires --func NAME")
	}
	path := fs.rest[0]

	irModule, err := asm.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	module := hostir.NewModule(irModule)
	dl := hostir.NewDataLayout()
	opts := typeanalysis.Options{Verbose: fs.verbose, Trace: traceToStderr}
	cache := ipcache.New(module, dl, opts)

	fn, ok := module.Function(hostir.FunctionID(fs.funcName))
	if !ok {
		return fmt.Errorf("function %q not found (or has no body) in %s", fs.funcName, path)
	}

	sum := summary.New(len(fn.Params()), lattice.OffsetMap{})
	for i := range sum.Args {
		sum.Args[i] = lattice.FromSingle(nil, lattice.Anything)
	}
	a := typeanalysis.NewAnalyzer(fn, sum, cache, dl, opts)
	handle, err := a.Run(context.Background())
	if err != nil {
		return err
	}

	retActivity := reversemode.Constant
	if fs.activeRet {
		retActivity = reversemode.Active
	}
	argActivities := make([]reversemode.Activity, len(fn.Params()))
	for i := range argActivities {
		if fs.activeArgs[i] {
			argActivities[i] = reversemode.Active
		}
	}

	gen := newTextGenerator(fn)
	shadow, err := reversemode.CreateReverseDiff(fn, handle, retActivity, argActivities, gen)
	if err != nil {
		return err
	}

	fmt.Print(gen.String())
	_ = shadow
	return nil
}

func filterByName(fns []hostir.Function, name string) []hostir.Function {
	var out []hostir.Function
	for _, f := range fns {
		if f.Name() == name {
			out = append(out, f)
		}
	}
	return out
}

func printFunctionFacts(fn hostir.Function, h *typeanalysis.Handle, fs flagSet) {
	header := fmt.Sprintf("function %s", fn.Name())
	if fs.color {
		header = "\x1b[1m" + header + "\x1b[0m"
	}
	fmt.Println(header)

	vals := fn.AllValues()
	sort.Slice(vals, func(i, j int) bool { return vals[i].String() < vals[j].String() })
	for _, v := range vals {
		facts := h.Query(v)
		if fs.verbose {
			fmt.Printf("  %s:\n    %s\n", v.String(), pretty.Sprint(facts))
			continue
		}
		fmt.Printf("  %s -> %s\n", v.String(), facts.String())
	}
	fmt.Printf("  return -> %s\n", h.ReturnAnalysis().String())
}

func traceToStderr(line string) {
	fmt.Fprintln(os.Stderr, "[trace] "+line)
}
