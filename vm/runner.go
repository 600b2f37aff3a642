package vm

import (
	"os"
	"runtime/debug"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Run wraps Interpret the way the source repo's RunProgram wraps its own
// dispatch loop: the garbage collector is disabled for the duration of the
// hot loop (instruction dispatch allocates nothing beyond the initial
// stack/env, so a GC pause mid-run only costs time for no benefit) and any
// panic that escapes the decoder or executor — which should only happen on
// a genuinely malformed program, since every detectable malformation is
// supposed to surface as an error instead — is recovered and reported as
// ErrUnknownInstruction rather than crashing the embedding process.
//
// GOGC is restored to its prior value (or 100, the runtime default) once
// Interpret returns.
func (v *VM) Run() (result int64, err error) {
	prior := currentGOGC()
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(prior)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("vm", v.id).
				Interface("panic", r).
				Msg("recovered from panic during dispatch")
			err = errors.Wrapf(ErrUnknownInstruction, "recovered panic: %v", r)
		}
	}()

	return v.Interpret()
}

// currentGOGC reads the GOGC environment variable the same way the source
// repo's RunProgram does, falling back to the runtime default of 100 when
// it's unset or unparseable.
func currentGOGC() int {
	raw, ok := os.LookupEnv("GOGC")
	if !ok {
		return 100
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 100
	}
	return parsed
}
