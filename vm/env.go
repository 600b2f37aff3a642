package vm

// varName is a variable name as the decoder hands it over: exactly four
// raw bytes, compared byte-exact with no trimming or encoding validation
// (read_string in the source maps each byte through `as char`, so this
// repo does the equivalent — treat the four bytes as an opaque key).
type varName [4]byte

// environment is the VM's flat name -> int64 table. Function calls do not
// introduce a new scope: callers and callees share this same map, which is
// the whole point of the calling convention in §4.4.
type environment struct {
	vars map[varName]int64
}

func newEnvironment() *environment {
	return &environment{vars: make(map[varName]int64)}
}

// write inserts or replaces the value bound to name.
func (e *environment) write(name varName, value int64) {
	e.vars[name] = value
}

// read returns the value bound to name. A missing name yields
// ErrStackUnderflow — a design quirk inherited from the source's
// `variables.get` failure path (§4.3), kept because the scenario tests in
// §8 assume it.
func (e *environment) read(name varName) (int64, error) {
	v, ok := e.vars[name]
	if !ok {
		return 0, ErrStackUnderflow
	}
	return v, nil
}
