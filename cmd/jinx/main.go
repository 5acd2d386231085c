// Command jinx is a batch compile-and-run driver for the jinx scripting
// engine: load a script file, compile it, and execute slices until the
// script finishes, printing whatever `write` calls logged along the way.
//
// Its shape — flag-driven, a deferred error handler that prints and exits
// non-zero, an optional `-dump` disassembly pass — follows the teacher's
// cmd/retro/main.go, trimmed of the interactive-terminal machinery (raw tty
// mode, CTRL-D handling, multiple `-with` input files) that command needed
// for a live Forth REPL and this one does not.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jinx-lang/jinx"
	"github.com/jinx-lang/jinx/bytecode"
	"github.com/jinx-lang/jinx/internal/iow"
)

func atExit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "jinx: %v\n", err)
	os.Exit(1)
}

func main() {
	var err error
	defer func() { atExit(err) }()

	dump := flag.Bool("dump", false, "disassemble compiled bytecode instead of running it")
	debug := flag.Bool("debug", false, "emit debug line-table info during compile")
	symbols := flag.Bool("symbols", false, "log symbol/function registration during compile")
	maxInstr := flag.Int("maxinstr", 2000, "instructions per Execute slice")
	stats := flag.Bool("stats", false, "print performance statistics upon exit")
	importList := flag.String("import", "", "comma-separated list of libraries to import")
	flag.Parse()

	if flag.NArg() != 1 {
		err = errors.New("usage: jinx [flags] <script-file>")
		return
	}

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "read %s", path)
		return
	}

	var imports []string
	if *importList != "" {
		imports = strings.Split(*importList, ",")
	}

	jinx.Initialize(
		jinx.EnableDebugInfo(*debug),
		jinx.LogSymbols(*symbols),
		jinx.MaxInstructions(*maxInstr),
	)
	rt := jinx.CreateRuntime()

	bc, err := rt.Compile(string(src), path, imports)
	if err != nil {
		return
	}

	if *dump {
		prog, derr := bytecode.Decode(bc)
		if derr != nil {
			err = errors.Wrap(derr, "decode compiled bytecode")
			return
		}
		out := iow.NewErrWriter(os.Stdout)
		pc := 0
		for pc < len(prog.Code) {
			pc = bytecode.Disassemble(prog.Code, pc, out)
		}
		if out.Err != nil {
			err = out.Err
		}
		return
	}

	script, err := rt.CreateScript(bc, nil)
	if err != nil {
		return
	}
	defer script.Close()

	start := time.Now()
	for !script.IsFinished() {
		script.Execute()
	}
	if script.Failed() {
		err = script.Err()
		return
	}

	if *stats {
		delta := time.Since(start)
		ps := rt.GetPerformanceStats(false)
		fmt.Fprintf(os.Stderr, "compiled %d time(s), executed %d instruction(s) over %d slice(s) in %v\n",
			ps.CompileCount, ps.InstructionCount, ps.ExecuteCount, delta)
	}
}
