package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/asyncsm/future"
	"github.com/wippyai/asyncsm/statemachine"
	"github.com/wippyai/asyncsm/telemetry"
	"github.com/wippyai/asyncsm/wasmop"
)

func main() {
	var (
		demo        = flag.String("demo", "", "Demo to run: "+strings.Join(demoNames(), "|"))
		wasmFile    = flag.String("wasm", "", "Path to core wasm module")
		funcName    = flag.String("func", "", "Exported function to call")
		argList     = flag.String("args", "", "Integer arguments (comma-separated)")
		verbose     = flag.Bool("v", false, "Verbose logging")
		metrics     = flag.Bool("metrics", false, "Print machine metrics on exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *demo == "" && *wasmFile == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: smrun -demo <"+strings.Join(demoNames(), "|")+"> [-v] [-metrics]")
		fmt.Fprintln(os.Stderr, "       smrun -wasm <file.wasm> -func name [-args 2,3]")
		fmt.Fprintln(os.Stderr, "       smrun -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		statemachine.SetLogger(log)
		wasmop.SetLogger(log)
	}

	reg := prometheus.NewRegistry()
	obs := telemetry.Multi(
		telemetry.NewMetrics(reg),
		telemetry.NewTracing(otel.Tracer("github.com/wippyai/asyncsm/cmd/smrun")),
	)

	var err error
	switch {
	case *interactive:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			err = fmt.Errorf("interactive mode needs a terminal")
			break
		}
		err = runInteractive(obs)
	case *wasmFile != "":
		err = runWasm(*wasmFile, *funcName, *argList, obs)
	default:
		err = runDemo(*demo, obs)
	}

	if *metrics {
		printMetrics(reg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printer writes machine events to stdout.
func printer() statemachine.Observer {
	return statemachine.ObserverFunc(func(e statemachine.Event) {
		line := fmt.Sprintf("  %-9s state=%d depth=%d turn=%d", e.Type, e.State, e.Depth, e.Turn)
		if e.Err != nil {
			line += fmt.Sprintf(" fault=%s err=%q", e.Kind, e.Err)
		}
		fmt.Println(line)
	})
}

type wasmLocals struct {
	call *future.Future[[]uint64]
	mod  *wasmop.Module
	ctx  context.Context
	fn   string
	args []uint64
}

func runWasm(path, fn, argList string, obs statemachine.Observer) error {
	ctx := context.Background()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	args, err := parseArgs(argList)
	if err != nil {
		return err
	}

	eng := wasmop.NewEngine(ctx, nil)
	defer eng.Close(ctx)

	mod, err := eng.Load(ctx, "main", data)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	fmt.Printf("Module: %s\n", path)
	fmt.Printf("Exports: %s\n", strings.Join(mod.Exports(), ", "))
	if fn == "" {
		return nil
	}

	transition := func(m *statemachine.Machine[wasmLocals, []uint64]) error {
		l := &m.Locals
		if m.Entering() {
			l.call = l.mod.Call(l.ctx, l.fn, l.args...)
			if !statemachine.MoveNext(m, l.call, 1) {
				return nil
			}
		}
		results, err := l.call.Result()
		if err != nil {
			return err
		}
		m.Complete(results)
		return nil
	}

	cfg := &statemachine.Config{Name: "wasm:" + fn, Observer: telemetry.Multi(obs, printer())}
	fmt.Printf("\nCalling %s(%s)...\n", fn, argList)
	results, err := statemachine.StartWithConfig(transition, wasmLocals{mod: mod, ctx: ctx, fn: fn, args: args}, cfg).Await(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", fn, err)
	}
	fmt.Printf("Result: %v\n", results)
	return nil
}

func parseArgs(list string) ([]uint64, error) {
	if list == "" {
		return nil, nil
	}
	var out []uint64
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		out = append(out, uint64(v))
	}
	return out, nil
}

func printMetrics(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gather metrics: %v\n", err)
		return
	}
	var lines []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value string
			switch {
			case m.GetCounter() != nil:
				value = strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
			case m.GetGauge() != nil:
				value = strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
			case m.GetHistogram() != nil:
				value = fmt.Sprintf("count=%d sum=%gs", m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %s", f.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	fmt.Println("\n--- metrics ---")
	for _, l := range lines {
		fmt.Println(l)
	}
}
