package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/1broseidon/steer/internal/automation"
	"github.com/1broseidon/steer/internal/geometry"
	"github.com/1broseidon/steer/internal/identity"
	"github.com/1broseidon/steer/internal/ipc"
	"github.com/1broseidon/steer/internal/wait"
)

// routeFlags are shared by every command that is sent through the router.
type routeFlags struct {
	policy *string
	json   *bool
}

func addRouteFlags(fs *flag.FlagSet) routeFlags {
	return routeFlags{
		policy: fs.String("policy", "", "Visibility policy: preserve or allow-restore (default: from daemon config)"),
		json:   fs.Bool("json", false, "Print JSON"),
	}
}

// sendCommand routes cmd through the daemon and prints the outcome.
func sendCommand(f routeFlags, window string, cmd automation.Command) int {
	if *f.policy != "" {
		if _, err := automation.ParsePolicy(*f.policy); err != nil {
			return reportError(err)
		}
	}
	if err := cmd.Validate(); err != nil {
		return reportError(err)
	}

	res, err := ipc.NewClient().Route(cmd, window, *f.policy)
	if err != nil {
		return reportError(err)
	}
	if wantJSON(*f.json) {
		return printJSON(os.Stdout, res)
	}
	printRouted(os.Stdout, res)
	return 0
}

func printRouted(w io.Writer, res *ipc.RouteData) {
	fmt.Fprintf(w, "%s via %s", res.Window, res.Route)
	if res.Point != nil {
		fmt.Fprintf(w, " at %g,%g", res.Point.X, res.Point.Y)
	}
	fmt.Fprintf(w, " (%s)\n", res.InvocationID)
}

func parseFloats(args []string, names ...string) ([]float64, error) {
	if len(args) != len(names) {
		return nil, automation.NewInvalidArgument(fmt.Sprintf("expected %s", strings.Join(names, " ")))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, automation.NewInvalidArgument(fmt.Sprintf("%s: %q is not a number", names[i], a))
		}
		out[i] = v
	}
	return out, nil
}

// parsePair parses "X,Y".
func parsePair(s string) (float64, float64, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, automation.NewInvalidArgument(fmt.Sprintf("expected X,Y, got %q", s))
	}
	v, err := parseFloats([]string{strings.TrimSpace(xs), strings.TrimSpace(ys)}, "x", "y")
	if err != nil {
		return 0, 0, err
	}
	return v[0], v[1], nil
}

func runClick(args []string) int {
	fs := flag.NewFlagSet("click", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	button := fs.String("button", "left", "Mouse button: left, middle or right")
	count := fs.Int("count", 1, "Number of clicks (1-3)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer click [--button B] [--count N] [--policy P] [--json] <window> <x> <y>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Coordinates are relative to the window's top-left corner.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 2
	}
	xy, err := parseFloats(fs.Args()[1:], "x", "y")
	if err != nil {
		return reportError(err)
	}

	return sendCommand(rf, fs.Arg(0), automation.Click{
		Point:  geometry.WindowPoint{X: xy[0], Y: xy[1]},
		Button: automation.MouseButton(strings.ToLower(*button)),
		Count:  *count,
	})
}

func runType(args []string) int {
	fs := flag.NewFlagSet("type", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer type [--policy P] [--json] <window> <text...>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Use '-' as text to read it from stdin.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}

	text := strings.Join(fs.Args()[1:], " ")
	if text == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read stdin: %v\n", err)
			return 1
		}
		text = strings.TrimSuffix(string(data), "\n")
	}
	return sendCommand(rf, fs.Arg(0), automation.TypeText{Text: text})
}

func runDrag(args []string) int {
	fs := flag.NewFlagSet("drag", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	duration := fs.Duration("duration", 0, "How long the drag takes (e.g. 300ms)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer drag [--duration D] [--policy P] [--json] <window> <x1> <y1> <x2> <y2>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 5 {
		fs.Usage()
		return 2
	}
	v, err := parseFloats(fs.Args()[1:], "x1", "y1", "x2", "y2")
	if err != nil {
		return reportError(err)
	}

	return sendCommand(rf, fs.Arg(0), automation.Drag{
		From:     geometry.WindowPoint{X: v[0], Y: v[1]},
		To:       geometry.WindowPoint{X: v[2], Y: v[3]},
		Duration: *duration,
	})
}

func runScroll(args []string) int {
	fs := flag.NewFlagSet("scroll", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer scroll [--policy P] [--json] <window> <x> <y> <dx> <dy>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Positive dy scrolls down, positive dx scrolls right.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 5 {
		fs.Usage()
		return 2
	}
	v, err := parseFloats(fs.Args()[1:], "x", "y", "dx", "dy")
	if err != nil {
		return reportError(err)
	}

	return sendCommand(rf, fs.Arg(0), automation.Gesture{
		Type:   automation.GestureScroll,
		At:     geometry.WindowPoint{X: v[0], Y: v[1]},
		DeltaX: v[2],
		DeltaY: v[3],
	})
}

func runGesture(args []string) int {
	fs := flag.NewFlagSet("gesture", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	typ := fs.String("type", "", "Gesture type: scroll, pinch, rotate, drag or swipe")
	scale := fs.Float64("scale", 0, "Zoom factor (pinch)")
	angle := fs.Float64("angle", 0, "Rotation in degrees (rotate)")
	to := fs.String("to", "", "End point X,Y (drag, swipe)")
	delta := fs.String("delta", "", "Scroll distance DX,DY (scroll)")
	duration := fs.Duration("duration", 0, "Gesture duration")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer gesture --type T [--scale S] [--angle A] [--to X,Y] [--delta DX,DY] [--duration D] [--policy P] <window> <x> <y>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return 2
	}

	g, err := buildGesture(*typ, fs.Args()[1:], *scale, *angle, *to, *delta, *duration)
	if err != nil {
		return reportError(err)
	}
	return sendCommand(rf, fs.Arg(0), g)
}

func buildGesture(typ string, at []string, scale, angle float64, to, delta string, d time.Duration) (automation.Gesture, error) {
	t, err := automation.ParseGestureType(typ)
	if err != nil {
		return automation.Gesture{}, err
	}
	xy, err := parseFloats(at, "x", "y")
	if err != nil {
		return automation.Gesture{}, err
	}
	g := automation.Gesture{
		Type:     t,
		At:       geometry.WindowPoint{X: xy[0], Y: xy[1]},
		Scale:    scale,
		Angle:    angle,
		Duration: d,
	}
	if to != "" {
		if g.To.X, g.To.Y, err = parsePair(to); err != nil {
			return automation.Gesture{}, err
		}
	}
	if delta != "" {
		if g.DeltaX, g.DeltaY, err = parsePair(delta); err != nil {
			return automation.Gesture{}, err
		}
	}
	return g, nil
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	rf := addRouteFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer plan [--policy P] [--json] <click|type_text|drag|gesture> <window>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show which routes would be tried, without performing anything.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	cmd, err := probeCommand(fs.Arg(0))
	if err != nil {
		return reportError(err)
	}

	res, err := ipc.NewClient().Plan(cmd, fs.Arg(1), *rf.policy)
	if err != nil {
		return reportError(err)
	}
	if wantJSON(*rf.json) {
		return printJSON(os.Stdout, res)
	}
	fmt.Printf("window: %s\n", res.Window)
	for i, step := range res.Plan {
		fmt.Printf("%d. %-16s %s\n", i+1, step.Route, describeStep(step.Available, step.Supported, step.NeedsRestore, step.Blocked, step.Note))
	}
	return 0
}

// probeCommand returns a valid command of the named kind for planning.
func probeCommand(kind string) (automation.Command, error) {
	switch automation.CommandKind(strings.ToLower(strings.TrimSpace(kind))) {
	case automation.KindClick:
		return automation.Click{}, nil
	case automation.KindTypeText, "type":
		return automation.TypeText{Text: " "}, nil
	case automation.KindDrag:
		return automation.Drag{}, nil
	case automation.KindGesture, "scroll":
		return automation.Gesture{Type: automation.GestureScroll, DeltaY: 1}, nil
	}
	return nil, automation.NewInvalidArgument(fmt.Sprintf("unknown command kind %q", kind))
}

func describeStep(available, supported, needsRestore, blocked bool, note string) string {
	var s string
	switch {
	case !available:
		s = "unavailable"
	case !supported:
		s = "not capable"
	case blocked:
		s = "blocked by policy"
	case needsRestore:
		s = "ready after restore"
	default:
		s = "ready"
	}
	if note != "" {
		s += " (" + note + ")"
	}
	return s
}

func runClassify(args []string) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer classify <handle>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	c := identity.Classify(fs.Arg(0))
	fmt.Printf("%s %s\n", c.Form, c.Value)
	return 0
}

func runHash(args []string) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	handle := fs.Bool("handle", false, "Print a win_ handle instead of the bare digest")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer hash [--handle] <text...>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	digest := identity.CreateStableHash(strings.Join(fs.Args(), " "))
	if *handle {
		digest = identity.WindowPrefix + digest
	}
	fmt.Println(digest)
	return 0
}

func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer resolve [--json] <handle>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	res, err := ipc.NewClient().Resolve(fs.Arg(0))
	if err != nil {
		return reportError(err)
	}
	if wantJSON(*asJSON) {
		return printJSON(os.Stdout, res)
	}
	fmt.Printf("handle:      %s\n", res.Handle)
	fmt.Printf("form:        %s\n", res.Form)
	if res.Alternative != "" {
		fmt.Printf("alternative: %s\n", res.Alternative)
	}
	if res.Window != nil {
		fmt.Printf("window:      %s %q (%s)\n", res.Window.Handle, res.Window.Title, windowState(*res.Window))
	} else {
		fmt.Println("window:      not found")
	}
	return 0
}

func runMap(args []string) int {
	fs := flag.NewFlagSet("map", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer map <canonical> <alternative>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	if err := ipc.NewClient().Map(fs.Arg(0), fs.Arg(1)); err != nil {
		return reportError(err)
	}
	return 0
}

func runCapture(args []string) int {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	out := fs.String("o", "", "Output file (default: <handle>.png)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer capture [-o FILE] <window>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	res, err := ipc.NewClient().Capture(fs.Arg(0))
	if err != nil {
		return reportError(err)
	}
	path := *out
	if path == "" {
		path = res.Handle + ".png"
	}
	if path == "-" {
		_, err = os.Stdout.Write(res.PNG)
	} else {
		err = os.WriteFile(path, res.PNG, 0644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write capture: %v\n", err)
		return 1
	}
	if path != "-" {
		fmt.Printf("%s (%dx%d)\n", path, res.Width, res.Height)
	}
	return 0
}

func runWait(args []string) int {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: steer wait <duration|seconds>")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	d, err := parseWaitDuration(fs.Arg(0))
	if err != nil {
		return reportError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := wait.For(ctx, d); err != nil {
		return 1
	}
	return 0
}

// parseWaitDuration accepts Go durations ("1.5s") and bare seconds ("2").
func parseWaitDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, automation.NewInvalidArgument("duration must not be negative")
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, automation.NewInvalidArgument(fmt.Sprintf("invalid duration %q", s))
	}
	if d < 0 {
		return 0, automation.NewInvalidArgument("duration must not be negative")
	}
	return d, nil
}
