package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/config"
	"github.com/1broseidon/steer/internal/ipc"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "click":
		os.Exit(runClick(os.Args[2:]))
	case "type":
		os.Exit(runType(os.Args[2:]))
	case "drag":
		os.Exit(runDrag(os.Args[2:]))
	case "scroll":
		os.Exit(runScroll(os.Args[2:]))
	case "gesture":
		os.Exit(runGesture(os.Args[2:]))
	case "plan":
		os.Exit(runPlan(os.Args[2:]))
	case "classify":
		os.Exit(runClassify(os.Args[2:]))
	case "hash":
		os.Exit(runHash(os.Args[2:]))
	case "resolve":
		os.Exit(runResolve(os.Args[2:]))
	case "map":
		os.Exit(runMap(os.Args[2:]))
	case "capture":
		os.Exit(runCapture(os.Args[2:]))
	case "wait":
		os.Exit(runWait(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: steer <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the steer daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  windows             List top-level windows")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  click               Click at a window-relative point")
	fmt.Fprintln(w, "  type                Type text into a window")
	fmt.Fprintln(w, "  drag                Drag between two window-relative points")
	fmt.Fprintln(w, "  scroll              Scroll at a window-relative point")
	fmt.Fprintln(w, "  gesture             Perform a pinch, rotate, drag or swipe gesture")
	fmt.Fprintln(w, "  plan                Show the routes a command would try")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  classify            Classify a window handle")
	fmt.Fprintln(w, "  hash                Print the stable hash of a string")
	fmt.Fprintln(w, "  resolve             Resolve a handle through the daemon")
	fmt.Fprintln(w, "  map                 Register two handles as the same window")
	fmt.Fprintln(w, "  capture             Capture a window as PNG")
	fmt.Fprintln(w, "  wait                Sleep for a duration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'steer <command> --help' for command-specific options.")
}

// parseFlags parses args and reports the exit code to use when parsing
// ended the command.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

// wantJSON reports whether output should be JSON: when asked for, or when
// stdout is not a terminal.
func wantJSON(asked bool) bool {
	return asked || !term.IsTerminal(int(os.Stdout.Fd()))
}

func printJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// reportError prints err and returns the exit code for it.
func reportError(err error) int {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if errors.Is(err, automation.InvalidArgument) {
		return 2
	}
	return 1
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		return reportError(err)
	}
	if wantJSON(*asJSON) {
		return printJSON(os.Stdout, status)
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Printf("routes:         %s\n", joinStrings(status.Routes))
	fmt.Printf("capabilities:   %s\n", joinStrings(status.Capabilities))
	fmt.Printf("mappings:       %d\n", status.Mappings)
	for _, d := range status.Displays {
		fmt.Printf("display %d:      %s %gx%g+%g+%g\n", d.ID, d.Name,
			d.Bounds.Size.Width, d.Bounds.Size.Height, d.Bounds.Origin.X, d.Bounds.Origin.Y)
	}
	return 0
}

func joinStrings[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func runWindows(args []string) int {
	fs := flag.NewFlagSet("windows", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	class := fs.String("class", "", "Only list windows whose class contains this text")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer windows [--json] [--class TEXT]")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	wins, err := ipc.NewClient().ListWindows()
	if err != nil {
		return reportError(err)
	}
	wins = filterWindows(wins, *class)

	if wantJSON(*asJSON) {
		return printJSON(os.Stdout, wins)
	}
	writeWindowTable(os.Stdout, wins)
	return 0
}

func filterWindows(wins []ipc.WindowInfo, class string) []ipc.WindowInfo {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return wins
	}
	out := make([]ipc.WindowInfo, 0, len(wins))
	for _, w := range wins {
		if strings.Contains(strings.ToLower(w.Class), class) {
			out = append(out, w)
		}
	}
	return out
}

func writeWindowTable(w io.Writer, wins []ipc.WindowInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HANDLE\tPID\tCLASS\tGEOMETRY\tSTATE\tTITLE\tALTERNATIVE")
	for _, win := range wins {
		f := win.Frame
		fmt.Fprintf(tw, "%s\t%d\t%s\t%gx%g+%g+%g\t%s\t%s\t%s\n",
			win.Handle, int32(win.App), win.Class,
			f.Size.Width, f.Size.Height, f.Origin.X, f.Origin.Y,
			windowState(win.Window), win.Title, win.Alternative)
	}
	tw.Flush()
}

func windowState(w automation.Window) string {
	switch {
	case w.Minimized:
		return "minimized"
	case w.Active:
		return "active"
	default:
		return "visible"
	}
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  steer config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  steer config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/steer/config.yaml)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		for _, f := range res.Files {
			fmt.Printf("  loaded %s\n", f)
		}
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/steer/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}
