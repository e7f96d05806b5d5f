package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/native"
	"github.com/wippyai/jvm-attach/vm"
	"github.com/wippyai/jvm-attach/vmtest"
	"github.com/wippyai/jvm-attach/vtable"
)

type optionList []string

func (o *optionList) String() string {
	return strings.Join(*o, ",")
}

func (o *optionList) Set(v string) error {
	*o = append(*o, v)
	return nil
}

func main() {
	var jvmOpts optionList
	var (
		jvmPath       = flag.String("jvm", "", "Path to libjvm (e.g. $JAVA_HOME/lib/server/libjvm.so)")
		threads       = flag.Int("threads", 4, "Number of native threads performing work")
		rounds        = flag.Int("rounds", 100, "Perform calls per thread")
		suppressEvery = flag.Int("suppress-every", 0, "Keep a thread attached after every Nth round (0 disables)")
		simulate      = flag.Bool("simulate", false, "Use an in-process simulated VM instead of libjvm")
		verbose       = flag.Bool("v", false, "Log attach and detach activity")
		plain         = flag.Bool("plain", false, "Disable colors")
	)
	flag.Var(&jvmOpts, "opt", "JVM option, repeatable (default -Xrs)")
	flag.Parse()

	if *jvmPath == "" && !*simulate {
		fmt.Fprintln(os.Stderr, "Usage: attachprobe -jvm <libjvm> [-opt -Xmx64m ...] [-threads N] [-rounds N] [-suppress-every N]")
		fmt.Fprintln(os.Stderr, "       attachprobe -simulate [-threads N] [-rounds N] [-suppress-every N]")
		os.Exit(1)
	}
	if len(jvmOpts) == 0 {
		jvmOpts = optionList{"-Xrs"}
	}

	if *plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	cfg := probeConfig{
		threads:       *threads,
		rounds:        *rounds,
		suppressEvery: *suppressEvery,
	}
	if err := run(*jvmPath, jvmOpts, *simulate, *verbose, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(jvmPath string, jvmOpts []string, simulate, verbose bool, cfg probeConfig) error {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	vm.SetLogger(logger)
	vtable.SetLogger(logger)

	source := jvmPath
	load := func() (jvmattach.Platform, jvmattach.Address, error) {
		h, err := native.CreateJavaVM(jvmPath, vm.Version1_8, jvmOpts)
		if err != nil {
			return nil, 0, fmt.Errorf("load JVM: %w", err)
		}
		return native.New(), h, nil
	}
	if simulate {
		source = "simulated"
		load = func() (jvmattach.Platform, jvmattach.Address, error) {
			jvm := vmtest.New()
			return jvm, jvm.Handle(), nil
		}
	}

	platform, handle, err := openJavaVM(load)
	if err != nil {
		return err
	}

	machine, err := vm.New(platform, handle)
	if err != nil {
		return fmt.Errorf("resolve invoke interface: %w", err)
	}

	rep := probe(machine, cfg)
	rep.source = source
	fmt.Print(rep.render())

	if rep.failed() {
		return fmt.Errorf("%d thread(s) failed", rep.failures())
	}
	return nil
}

// openJavaVM locks the calling goroutine to its OS thread for good and runs
// load there. JNI_CreateJavaVM leaves the creating thread attached, so that
// thread must never be handed to a probe worker.
func openJavaVM(load func() (jvmattach.Platform, jvmattach.Address, error)) (jvmattach.Platform, jvmattach.Address, error) {
	runtime.LockOSThread()
	return load()
}
