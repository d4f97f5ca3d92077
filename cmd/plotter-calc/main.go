// plotter-calc runs the bent-crank kinematics from the command line.
//
// Usage:
//
//	plotter-calc [-config plotter.cfg] [-json] <command> [args]
//
// Commands:
//
//	forward LEFT RIGHT   pen position for a servo pair (degrees)
//	inverse X Y          servo pair for a pen position (mm)
//	workspace [STEP]     reachable area over the servo range
//	path                 solve "x y" or "x,y" lines from stdin
//
// With -commands, path prints servo controller commands instead of a table;
// unsolved points are skipped.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jbeda/geom"

	"bentcrank-plotter/pkg/config"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/log"
	"bentcrank-plotter/pkg/pool"
	"bentcrank-plotter/pkg/servolink"
)

func main() {
	configFile := flag.String("config", "", "Plotter configuration file (default geometry if empty)")
	asJSON := flag.Bool("json", false, "Print results as JSON")
	commands := flag.Bool("commands", false, "path: print servo controller commands")
	workers := flag.Int("workers", 0, "path: worker pool size (default: GOMAXPROCS)")
	flag.Usage = usage
	flag.Parse()

	logger := log.GetLogger("plotter-calc")
	logger.SetWriter(os.Stderr)

	solver, err := loadSolver(*configFile, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	c := &calc{solver: solver, out: os.Stdout, json: *asJSON, commands: *commands, workers: *workers}
	if err := c.run(flag.Args(), os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: plotter-calc [options] forward|inverse|workspace|path [args]\n\n")
	flag.PrintDefaults()
}

func loadSolver(path string, logger *log.Logger) (*kinematics.Solver, error) {
	if path == "" {
		return kinematics.NewSolver(kinematics.DefaultConfig())
	}
	pc, err := config.ParsePlotterConfig(path)
	if err != nil {
		return nil, err
	}
	for _, w := range pc.Warnings {
		logger.WithField("file", path).Warn(w)
	}
	k, err := kinematics.NewFromConfig(pc.Mode, pc.Kinematics)
	if err != nil {
		return nil, err
	}
	s, ok := k.(*kinematics.Solver)
	if !ok {
		return nil, fmt.Errorf("kinematics %q has no solver", pc.Mode)
	}
	return s, nil
}

type calc struct {
	solver   *kinematics.Solver
	out      io.Writer
	json     bool
	commands bool
	workers  int
}

func (c *calc) run(args []string, stdin io.Reader) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "forward":
		v, err := parseFloats(args[1:], 2)
		if err != nil {
			return err
		}
		return c.forward(v[0], v[1])
	case "inverse":
		v, err := parseFloats(args[1:], 2)
		if err != nil {
			return err
		}
		return c.inverse(geom.Coord{X: v[0], Y: v[1]})
	case "workspace":
		step := 1.0
		if len(args) > 1 {
			v, err := parseFloats(args[1:], 1)
			if err != nil {
				return err
			}
			step = v[0]
		}
		return c.workspace(step)
	case "path":
		return c.path(stdin)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func (c *calc) emitJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *calc) forward(left, right float64) error {
	res := c.solver.Forward(left, right)
	if c.json {
		out := map[string]any{"found": res.Found(), "outcome": res.Outcome.String()}
		if res.Found() {
			out["pen"] = res.Pose.Pen
			out["left_elbow"] = res.Pose.LeftElbow
			out["right_elbow"] = res.Pose.RightElbow
		}
		return c.emitJSON(out)
	}
	if !res.Found() {
		_, err := fmt.Fprintf(c.out, "%s\n", res.Outcome)
		return err
	}
	_, err := fmt.Fprintf(c.out, "pen x=%.4f y=%.4f\n", res.Pose.Pen.X, res.Pose.Pen.Y)
	return err
}

func (c *calc) inverse(target geom.Coord) error {
	res := c.solver.Inverse(target)
	if c.json {
		out := map[string]any{"found": res.Found(), "outcome": res.Outcome.String()}
		if res.Outcome != kinematics.Unreachable {
			out["servos"] = res.Servos
		}
		return c.emitJSON(out)
	}
	_, err := io.WriteString(c.out, formatInverse(res)+"\n")
	return err
}

func formatInverse(res kinematics.InverseResult) string {
	switch res.Outcome {
	case kinematics.OK:
		return fmt.Sprintf("left=%.4f right=%.4f", res.Servos.Left, res.Servos.Right)
	case kinematics.Unreachable:
		return res.Outcome.String()
	default:
		return fmt.Sprintf("%s left=%.4f right=%.4f", res.Outcome, res.Servos.Left, res.Servos.Right)
	}
}

func (c *calc) workspace(step float64) error {
	if !(step >= 0.1) {
		return fmt.Errorf("step must be at least 0.1 degrees")
	}
	rep := kinematics.Workspace(c.solver, step)
	if c.json {
		return c.emitJSON(rep)
	}
	fmt.Fprintf(c.out, "samples=%d reachable=%d unreachable=%d\n", rep.Samples, rep.Reachable, rep.Unreachable)
	if rep.Empty() {
		return nil
	}
	b := rep.Bounds
	_, err := fmt.Fprintf(c.out, "x [%.3f, %.3f] y [%.3f, %.3f]\n", b.Min.X, b.Max.X, b.Min.Y, b.Max.Y)
	return err
}

// readPoints parses one point per line. Blank lines and lines starting
// with '#' are ignored.
func readPoints(r io.Reader, dst *[]geom.Coord) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		v, err := parseFloats(fields, 2)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		*dst = append(*dst, geom.Coord{X: v[0], Y: v[1]})
	}
	return sc.Err()
}

func (c *calc) path(stdin io.Reader) error {
	pts := pool.GetCoordSlice(0)
	defer pool.PutCoordSlice(pts)
	if err := readPoints(stdin, pts); err != nil {
		return err
	}

	results, err := c.solver.InversePath(context.Background(), *pts, c.workers)
	if err != nil {
		return err
	}
	summary := kinematics.SummarizeInverse(results)

	if c.commands {
		link := servolink.NewLink(c.out, "stdout")
		_, skipped, err := link.SendPath(results)
		if err != nil {
			return err
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d points skipped\n", skipped, summary.Total)
		}
		return nil
	}
	if c.json {
		return c.emitJSON(map[string]any{"results": results, "summary": summary})
	}

	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	for i, res := range results {
		p := (*pts)[i]
		fmt.Fprintf(buf, "%.3f,%.3f\t%s\n", p.X, p.Y, formatInverse(res))
	}
	fmt.Fprintf(buf, "total=%d found=%d unreachable=%d out_of_range=%d branch_mismatch=%d\n",
		summary.Total, summary.Found, summary.Unreachable, summary.OutOfRange, summary.BranchMismatch)
	_, err = c.out.Write(buf.Bytes())
	return err
}
