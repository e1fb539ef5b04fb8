package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-dap"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/movetrace/movetrace/cmd/movetrace/cmds/helphelpers"
	"github.com/movetrace/movetrace/pkg/config"
	"github.com/movetrace/movetrace/pkg/debuginfo"
	"github.com/movetrace/movetrace/pkg/logflags"
	"github.com/movetrace/movetrace/pkg/replay"
	"github.com/movetrace/movetrace/pkg/trace"
	"github.com/movetrace/movetrace/pkg/version"
	movedap "github.com/movetrace/movetrace/service/dap"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// debugInfoDirs are the directories searched for debug info index files.
	debugInfoDirs []string

	// showBytecode selects bytecode lines in the lines command.
	showBytecode bool
	// jsonOutput makes the replay command print one JSON object per stop.
	jsonOutput bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const movetraceCommandLongDesc = `Movetrace reads execution traces of the Move VM.

A trace is resolved against the debug info of the packages it executed:
each command loads the debug info index files found in the --debug-info
directories (by default the directories listed in the configuration file,
or the directory containing the trace) and then processes the trace.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	rootCommand = &cobra.Command{
		Use:   "movetrace",
		Short: "Movetrace is a trace viewer for the Move VM.",
		Long:  movetraceCommandLongDesc,
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'movetrace help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'movetrace help log').")
	rootCommand.PersistentFlags().StringSliceVar(&debugInfoDirs, "debug-info", nil, "Directories containing debug info index files.")

	// 'events' subcommand.
	eventsCommand := &cobra.Command{
		Use:   "events <trace>",
		Short: "Prints the events of a trace.",
		Long: `Prints the events of a trace, one per line.

Events include the virtual frames synthesized for inlined code, so the
output shows the sequence of frames a debugger steps through.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], func(out io.Writer, tr *trace.Trace, _ *debuginfo.Registry) error {
				return printEvents(out, tr)
			}))
		},
	}
	rootCommand.AddCommand(eventsCommand)

	// 'lines' subcommand.
	linesCommand := &cobra.Command{
		Use:   "lines <trace>",
		Short: "Prints the lines executed by a trace.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], func(out io.Writer, tr *trace.Trace, _ *debuginfo.Registry) error {
				return printLines(out, tr, showBytecode)
			}))
		},
	}
	linesCommand.Flags().BoolVar(&showBytecode, "bytecode", conf.ShowBytecode, "Prints disassembly lines instead of source lines.")
	rootCommand.AddCommand(linesCommand)

	// 'lifetimes' subcommand.
	lifetimesCommand := &cobra.Command{
		Use:   "lifetimes <trace>",
		Short: "Prints where the locals of each frame stop being live.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], func(out io.Writer, tr *trace.Trace, _ *debuginfo.Registry) error {
				return printLifetimes(out, tr)
			}))
		},
	}
	rootCommand.AddCommand(lifetimesCommand)

	// 'replay' subcommand.
	replayCommand := &cobra.Command{
		Use:   "replay <trace>",
		Short: "Steps through a trace printing the stack at every stop.",
		Long: `Steps through a trace printing the stack at every stop.

Stops are instructions, external summaries and the start of external
events. Frames and locals are presented as a debug adapter would send them
to its client; with --json each stop is printed as a JSON object.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args[0], func(out io.Writer, tr *trace.Trace, files *debuginfo.Registry) error {
				return printReplay(out, tr, files, jsonOutput)
			}))
		},
	}
	replayCommand.Flags().BoolVar(&jsonOutput, "json", false, "Prints each stop as a JSON object.")
	rootCommand.AddCommand(replayCommand)

	// 'version' subcommand.
	var buildInfo bool
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Summary(version.ReadBuild(), trace.MaxVersion, buildInfo))
		},
	}
	versionCommand.Flags().BoolVarP(&buildInfo, "verbose", "v", false, "print build info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(configCommand())

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	trace		Log trace decoding and frame reconstruction
	debuginfo	Log debug info loading
	replay		Log replay of trace events
	dap		Log the debug adapter view of the replay
	cli		Log the command line interface

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	usage := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return usage(cmd)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func execute(path string, fn func(io.Writer, *trace.Trace, *debuginfo.Registry) error) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	tr, files, err := loadTrace(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if err := fn(stdout(), tr, files); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return 0
}

// traceDebugInfoDirs returns the directories searched for debug info when
// reading the trace at path.
func traceDebugInfoDirs(path string) []string {
	switch {
	case len(debugInfoDirs) > 0:
		return debugInfoDirs
	case conf != nil && len(conf.DebugInfoDirectories) > 0:
		return conf.DebugInfoDirectories
	}
	return []string{filepath.Dir(path)}
}

func loadTrace(path string) (*trace.Trace, *debuginfo.Registry, error) {
	logger := logflags.CLILogger()
	dirs := traceDebugInfoDirs(path)
	logger.Debugf("loading debug info from %s", strings.Join(dirs, ", "))
	files, err := debuginfo.Load(dirs...)
	if err != nil {
		return nil, nil, err
	}
	logger.Debugf("%d modules loaded", len(files.Modules()))
	tr, err := trace.ReadFile(path, files)
	return tr, files, err
}

// stdout returns standard output, translating color escapes on Windows
// terminals and removing them when output is not a terminal.
func stdout() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return colorable.NewNonColorable(os.Stdout)
}

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiCyan   = "\x1b[36m"
)

var eventColors = map[trace.EventKind]string{
	trace.KindReplaceInlinedFrame: ansiYellow,
	trace.KindOpenFrame:           ansiBold + ansiGreen,
	trace.KindCloseFrame:          ansiGreen,
	trace.KindInstruction:         "",
	trace.KindEffect:              ansiBlue,
	trace.KindExternalSummary:     ansiCyan,
	trace.KindExternal:            ansiCyan,
}

func printEvents(out io.Writer, tr *trace.Trace) error {
	for i, ev := range tr.Events {
		desc := trace.EventString(ev)
		if e, ok := ev.(*trace.Effect); ok && e.Type == trace.EffectExecutionError {
			desc = ansiRed + desc
		} else if color := eventColors[ev.Kind()]; color != "" {
			desc = color + desc
		}
		if _, err := fmt.Fprintf(out, "%s%5d%s %s%s\n", ansiDim, i, ansiReset, desc, ansiReset); err != nil {
			return err
		}
	}
	return nil
}

func printLines(out io.Writer, tr *trace.Trace, bytecode bool) error {
	lines := tr.TracedSrcLines
	if bytecode {
		lines = tr.TracedBcodeLines
	}
	paths := make([]string, 0, len(lines))
	for path := range lines {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		sorted := lines[path].Sorted()
		nums := make([]string, len(sorted))
		for i, l := range sorted {
			nums[i] = fmt.Sprint(l)
		}
		if _, err := fmt.Fprintf(out, "%s%s%s: %s\n", ansiBold, path, ansiReset, strings.Join(nums, " ")); err != nil {
			return err
		}
	}
	return nil
}

func lifetimeString(end int) string {
	switch end {
	case trace.FrameLifetime:
		return "frame"
	case trace.LifetimeUnset:
		return "unset"
	}
	return fmt.Sprint(end)
}

func printLifetimes(out io.Writer, tr *trace.Trace) error {
	ids := make([]int, 0, len(tr.LocalLifetimeEnds))
	for id := range tr.LocalLifetimeEnds {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		ends := tr.LocalLifetimeEnds[id]
		fields := make([]string, len(ends))
		for slot, end := range ends {
			fields[slot] = fmt.Sprintf("%d=%s", slot, lifetimeString(end))
		}
		if _, err := fmt.Fprintf(out, "%sframe %d%s: %s\n", ansiBold, id, ansiReset, strings.Join(fields, " ")); err != nil {
			return err
		}
	}
	return nil
}

// replayStop is the JSON form of a stop.
type replayStop struct {
	Stop   string           `json:"stop"`
	Frames []dap.StackFrame `json:"frames"`
	Locals []dap.Variable   `json:"locals,omitempty"`
}

func printReplay(out io.Writer, tr *trace.Trace, files *debuginfo.Registry, asJSON bool) error {
	s := movedap.NewSession(replay.New(tr), files, conf)
	enc := json.NewEncoder(out)
	for n := 0; ; n++ {
		stop, err := s.Step()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		frames, _ := s.StackTrace(0, 0)
		var locals []dap.Variable
		if len(frames) > 0 {
			scopes, err := s.Scopes(frames[0].Id)
			if err != nil {
				return err
			}
			for _, scope := range scopes {
				vars, err := s.Variables(scope.VariablesReference)
				if err != nil {
					return err
				}
				locals = append(locals, vars...)
			}
		}
		if asJSON {
			if err := enc.Encode(replayStop{Stop: stop.Kind.String(), Frames: frames, Locals: locals}); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "%sstop %d%s: %s\n", ansiBold, n, ansiReset, trace.EventString(stop.Event))
		for _, f := range frames {
			loc := "?"
			if f.Source.Path != "" {
				loc = fmt.Sprintf("%s:%d", f.Source.Path, f.Line)
			}
			color := ""
			if f.PresentationHint != "" {
				color = ansiDim
			}
			fmt.Fprintf(out, "  %s%s%s at %s\n", color, f.Name, ansiReset, loc)
		}
		for _, v := range locals {
			fmt.Fprintf(out, "    %s = %s\n", v.Name, v.Value)
		}
	}
}
