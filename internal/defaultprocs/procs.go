// Package defaultprocs provides the default number of workers started
// for each pool, configured by flag.
package defaultprocs

import (
	"flag"
	"runtime"
)

// PerCPU is the default number of workers per available CPU.
var PerCPU int

func init() {
	flag.IntVar(&PerCPU, "kernelpool-internal-procs-per-cpu", 2,
		"Default number of pool workers to start per available CPU")
}

// Count returns the default number of workers for a pool: PerCPU
// workers for each CPU available to this process, and at least one.
func Count() int {
	n := PerCPU * runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}
