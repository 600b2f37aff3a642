// Command svm loads a raw bytecode file and runs it against the VM in
// package vm. It is a loader, not an assembler: the input is the encoded
// byte stream described in spec §6, not a textual assembly language —
// producing bytecode from source text is explicitly out of scope for this
// repository.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stackvm/vm"
)

func main() {
	var (
		debugFlag = flag.Bool("debug", false, "enable per-instruction debug logging")
		entryFlag = flag.Int("entry", 0, "initial instruction pointer (skips embedded function bodies)")
		stackFlag = flag.String("stack", "", "optional file of newline-separated decimal int64 values to seed the initial stack")
		quietFlag = flag.Bool("quiet", false, "suppress info-level logging, keep only warnings and errors")
	)
	flag.Parse()

	configureLogging(*quietFlag)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: svm [flags] <bytecode-file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	instructions, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Str("file", flag.Arg(0)).Msg("could not read bytecode file")
	}

	opts := []vm.Option{vm.WithEntryPoint(*entryFlag)}
	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		opts = append(opts, vm.WithDebugLogging())
	}

	if *stackFlag != "" {
		initial, err := loadInitialStack(*stackFlag)
		if err != nil {
			log.Fatal().Err(err).Str("file", *stackFlag).Msg("could not load initial stack")
		}
		opts = append(opts, vm.WithInitialStack(initial...))
	}

	machine := vm.New(instructions, opts...)

	result, err := machine.Run()
	if err != nil {
		log.Error().Err(err).Str("vm", machine.ID()).Msg("program terminated with an error")
		os.Exit(1)
	}

	fmt.Println(result)
}

// loadInitialStack reads one decimal int64 per non-blank line, pushed in
// file order (first line ends up deepest in the stack).
func loadInitialStack(path string) ([]vm.StackValue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []vm.StackValue
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", line, err)
		}
		values = append(values, vm.IntValue(n))
	}
	return values, scanner.Err()
}

func configureLogging(quiet bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if quiet {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
