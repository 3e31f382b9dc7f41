// Package poolflags provides flag support for use by kernelpool command
// line applications.
package poolflags

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigmachine"
	"github.com/pwakit/kernelpool/exec"
)

// systems maps each supported system name to the exec.Option that
// selects it.
var systems = map[string]func() exec.Option{
	// Workers run in goroutines of the calling process.
	"internal": func() exec.Option { return exec.Local },
	// Workers run as separate processes on this machine.
	"local": func() exec.Option { return exec.Bigmachine(bigmachine.Local) },
}

// Systems returns the names of the supported systems, sorted.
func Systems() []string {
	names := make([]string, 0, len(systems))
	for name := range systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemFlag is a flag.Value naming the system that hosts workers.
type SystemFlag struct {
	Name      string
	Specified bool
}

// String implements flag.Value.String
func (sys *SystemFlag) String() string {
	return sys.Name
}

// Set implements flag.Value.Set
func (sys *SystemFlag) Set(v string) error {
	if _, ok := systems[v]; !ok {
		return errors.E(errors.Invalid, fmt.Sprintf("unsupported system %q; want one of %s", v, strings.Join(Systems(), ", ")))
	}
	sys.Name = v
	sys.Specified = true
	return nil
}

// Get implements flag.Value.Get
func (sys *SystemFlag) Get() interface{} {
	return sys.String()
}

// Flags represents all of the flags that can be used to configure
// a kernelpool command.
type Flags struct {
	System        SystemFlag
	HTTPAddress   cmdutil.NetworkAddressFlag
	ConsoleStatus bool
	Parallelism   int
}

// RegisterFlags registers the kernelpool command line flags with the
// supplied flag set. The flag names will be prefixed with the supplied
// prefix.
func RegisterFlags(fs *flag.FlagSet, pf *Flags, prefix string) {
	fs.Var(&pf.System, prefix+"system", fmt.Sprintf("system hosting workers: one of %s", strings.Join(Systems(), ", ")))
	pf.System.Set("internal")
	pf.System.Specified = false
	fs.Var(&pf.HTTPAddress, prefix+"http", "address of http status server")
	pf.HTTPAddress.Set(":3333")
	pf.HTTPAddress.Specified = false
	fs.BoolVar(&pf.ConsoleStatus, prefix+"console-status", false, "print status to stdout")
	fs.IntVar(&pf.Parallelism, prefix+"parallelism", 0, "number of workers per pool, 0 requests an appropriate default for the system")
}

// ExecOptions returns the exec.Options that represent the values of
// the flags.
func (pf *Flags) ExecOptions() ([]exec.Option, error) {
	option, ok := systems[pf.System.Name]
	if !ok {
		return nil, errors.E(errors.Invalid, "no system specified")
	}
	var poolStatus status.Status
	options := []exec.Option{exec.Status(&poolStatus), option()}
	if pf.Parallelism > 0 {
		options = append(options, exec.Parallelism(pf.Parallelism))
	}
	return options, nil
}
