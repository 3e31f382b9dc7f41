package poolflags_test

import (
	"flag"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/pwakit/kernelpool/poolflags"
)

func TestSystemFlag(t *testing.T) {
	var sys poolflags.SystemFlag
	for _, name := range []string{"local", "internal"} {
		if err := sys.Set(name); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if got, want := sys.String(), name; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
	for _, bad := range []string{"ec2", "local:an=option", ""} {
		if err := sys.Set(bad); !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: expected invalid error, got %v", bad, err)
		}
	}
	if got, want := sys.String(), "internal"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(poolflags.Systems()), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRegisterFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var pf poolflags.Flags
	poolflags.RegisterFlags(fs, &pf, "pool-")
	if pf.System.Specified {
		t.Error("default system marked as specified")
	}
	if got, want := pf.System.String(), "internal"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if err := fs.Parse([]string{"-pool-system=local", "-pool-parallelism=7"}); err != nil {
		t.Fatal(err)
	}
	if !pf.System.Specified {
		t.Error("system not specified")
	}
	if got, want := pf.System.String(), "local"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := pf.Parallelism, 7; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	options, err := pf.ExecOptions()
	if err != nil {
		t.Fatal(err)
	}
	// Status, system, and parallelism.
	if got, want := len(options), 3; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExecOptionsDefault(t *testing.T) {
	var pf poolflags.Flags
	if _, err := pf.ExecOptions(); err == nil {
		t.Error("expected error")
	}
	if err := pf.System.Set("internal"); err != nil {
		t.Fatal(err)
	}
	options, err := pf.ExecOptions()
	if err != nil {
		t.Fatal(err)
	}
	// Parallelism is left to the session default.
	if got, want := len(options), 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
