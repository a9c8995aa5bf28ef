package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/varimech/internal/analysis"
	"github.com/san-kum/varimech/internal/config"
	"github.com/san-kum/varimech/internal/control"
	"github.com/san-kum/varimech/internal/experiment"
	"github.com/san-kum/varimech/internal/export"
	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/metrics"
	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/sim"
	"github.com/san-kum/varimech/internal/storage"
	"github.com/san-kum/varimech/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	scheme     string
	dt         float64
	duration   float64
	tolerance  float64
	maxIter    int
	paramFlags []string
	save       bool
	// controller
	ctrlKind  string
	ctrlInput string
	ctrlVar   string
	kp        float64
	ki        float64
	kd        float64
	target    float64
	ctrlSpeed float64
	ctrlSpan  float64
	// live view
	viewSpan float64
	// sweep / converge
	sweepSpec   string
	sweepParam  string
	sweepValues string
	convDts     string
	workers     int
	// plot / export
	plotCol      string
	exportFormat string
	exportOut    string
	exportFrames string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "varimech",
		Short: "variational integrator lab for articulated mechanisms",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "runs", "run storage directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a simulation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", false, "persist the run")

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list scenarios",
		RunE:  listScenarios,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		RunE:  listPresets,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotCol, "col", "", "single column to plot")

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "interactive live view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().Float64Var(&viewSpan, "span", 3, "view half-width in world units")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scenario]",
		Short: "sweep one scenario parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepSpec, "spec", "", "YAML sweep description")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to vary")
	sweepCmd.Flags().StringVar(&sweepValues, "values", "", "comma-separated values")
	sweepCmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	sweepCmd.Flags().Float64Var(&duration, "time", 10, "duration")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = NumCPU)")

	convergeCmd := &cobra.Command{
		Use:   "converge [scenario]",
		Short: "timestep convergence study",
		Args:  cobra.ExactArgs(1),
		RunE:  runConverge,
	}
	convergeCmd.Flags().StringVar(&convDts, "dts", "0.04,0.02,0.01,0.005", "comma-separated timesteps")
	convergeCmd.Flags().Float64Var(&duration, "time", 5, "duration")
	convergeCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (0 = NumCPU)")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json, csv or svg")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output path (- for stdout)")
	exportCmd.Flags().StringVar(&exportFrames, "frames", "", "frames to trace in svg (comma-separated, default massive frames)")

	rootCmd.AddCommand(runCmd, scenariosCmd, presetsCmd, runsCmd, plotCmd,
		liveCmd, sweepCmd, convergeCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	cmd.Flags().StringVar(&preset, "preset", "", "named preset")
	cmd.Flags().StringVar(&scheme, "scheme", "midpoint", "integration scheme")
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 10, "duration")
	cmd.Flags().Float64Var(&tolerance, "tol", 1e-10, "Newton tolerance")
	cmd.Flags().IntVar(&maxIter, "max-iter", 20, "Newton iteration cap")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "scenario parameter override (name=value)")
	cmd.Flags().StringVar(&ctrlKind, "controller", "", "controller kind (none, pid, shuttle)")
	cmd.Flags().StringVar(&ctrlInput, "input", "", "pid actuation input name")
	cmd.Flags().StringVar(&ctrlVar, "var", "", "pid controlled variable name")
	cmd.Flags().Float64Var(&kp, "kp", 10, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", 0.1, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", 5, "pid kd")
	cmd.Flags().Float64Var(&target, "target", 0, "pid target")
	cmd.Flags().Float64Var(&ctrlSpeed, "speed", 0.5, "shuttle traverse rate")
	cmd.Flags().Float64Var(&ctrlSpan, "travel", 1, "shuttle travel distance")
}

// loadConfig resolves flag > config file > preset > default precedence.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case preset != "":
		cfg, err = config.GetPreset(preset)
	case configFile != "":
		cfg, err = config.Load(configFile)
	default:
		cfg, err = config.Load("")
	}
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Scenario = args[0]
	}
	if cmd.Flags().Changed("scheme") {
		cfg.Integrator.Scheme = scheme
	}
	if cmd.Flags().Changed("dt") {
		cfg.Run.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		cfg.Run.Duration = duration
	}
	if cmd.Flags().Changed("tol") {
		cfg.Integrator.Tolerance = tolerance
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.Integrator.MaxIterations = maxIter
	}
	if cmd.Flags().Changed("controller") {
		cfg.Controller.Kind = ctrlKind
	}
	if cmd.Flags().Changed("input") {
		cfg.Controller.Input = ctrlInput
	}
	if cmd.Flags().Changed("var") {
		cfg.Controller.Var = ctrlVar
	}
	if cmd.Flags().Changed("kp") {
		cfg.Controller.Kp = kp
	}
	if cmd.Flags().Changed("ki") {
		cfg.Controller.Ki = ki
	}
	if cmd.Flags().Changed("kd") {
		cfg.Controller.Kd = kd
	}
	if cmd.Flags().Changed("target") {
		cfg.Controller.Target = target
	}
	if cmd.Flags().Changed("speed") {
		cfg.Controller.Speed = ctrlSpeed
	}
	if cmd.Flags().Changed("travel") {
		cfg.Controller.Span = ctrlSpan
	}
	for _, kv := range paramFlags {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("bad --param %q, want name=value", kv)
		}
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --param %q: %w", kv, err)
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[name] = x
	}
	return cfg, cfg.Validate()
}

func buildController(cfg *config.Config, sys *mech.System) (sim.Controller, error) {
	switch cfg.Controller.Kind {
	case "", "none":
		return nil, nil
	case "pid":
		return control.NewPID(sys, cfg.Controller.Input, cfg.Controller.Var,
			cfg.Controller.Kp, cfg.Controller.Ki, cfg.Controller.Kd, cfg.Controller.Target)
	case "shuttle":
		if sys.NK() == 0 {
			return nil, fmt.Errorf("scenario %s has no kinematic variables to shuttle", cfg.Scenario)
		}
		speed := cfg.Controller.Speed
		if speed <= 0 {
			speed = 0.5
		}
		start := make([]float64, sys.NK())
		end := make([]float64, sys.NK())
		end[0] = cfg.Controller.Span
		return control.NewShuttle([]control.Waypoint{
			{T: 0, Pos: start},
			{T: cfg.Controller.Span / speed, Pos: end},
		})
	default:
		return nil, fmt.Errorf("unknown controller kind %q", cfg.Controller.Kind)
	}
}

func defaultMetrics(sys *mech.System) []sim.Metric {
	ms := []sim.Metric{metrics.NewEnergyDrift(sys), metrics.NewNewtonIterations()}
	if sys.NC() > 0 {
		ms = append(ms, metrics.NewConstraintViolation(sys))
	}
	if sys.NU() > 0 {
		ms = append(ms, metrics.NewActuationEffort())
	}
	return ms
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	sys, q0, v0, err := scenario.BuildNamed(cfg.Scenario, cfg.Params)
	if err != nil {
		return err
	}
	simr, err := sim.New(sys, q0, v0, cfg.Options())
	if err != nil {
		return err
	}
	ctrl, err := buildController(cfg, sys)
	if err != nil {
		return err
	}

	// Energy trace for the post-run drift and frequency report.
	var times, energies []float64
	kin := sys.NewKinematics()
	nd := sys.ND()
	trace := func(s sim.State) {
		if kin.Set(s.Q) != nil {
			return
		}
		if e, err := sys.EnergyQP(kin, s.P, s.V[nd:]); err == nil {
			times = append(times, s.T)
			energies = append(energies, e)
		}
	}

	fmt.Printf("running %s (%s, dt=%g, %gs)...\n",
		cfg.Scenario, cfg.Integrator.Scheme, cfg.Run.Dt, cfg.Run.Duration)
	start := time.Now()
	result, err := simr.Run(context.Background(), sim.RunConfig{
		Duration:   cfg.Run.Duration,
		Dt:         cfg.Run.Dt,
		Controller: ctrl,
		Metrics:    defaultMetrics(sys),
		Observers:  []sim.Observer{trace},
	})
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v, %d states\n", time.Since(start).Round(time.Millisecond), len(result.States))

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-22s %.6g\n", name, result.Metrics[name])
	}

	if dr, err := analysis.Drift(times, energies); err == nil {
		fmt.Printf("\nenergy drift: %.3g per second (oscillation %.3g)\n", dr.Slope, dr.Oscillation)
	}
	if len(q0) > 0 {
		theta := make([]float64, len(result.States))
		for i, s := range result.States {
			theta[i] = s.Q[0]
		}
		if sp, err := analysis.Spectrum(theta, cfg.Run.Dt); err == nil {
			fmt.Printf("dominant frequency of %s: %.4g Hz\n", sys.VarNames()[0], sp.Dominant())
		}
	}

	if save || cfg.Output.Save {
		store, err := storage.Open(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()
		id, err := store.Save(storage.RunMeta{
			Scenario:   cfg.Scenario,
			Params:     cfg.Params,
			Scheme:     cfg.Integrator.Scheme,
			Controller: cfg.Controller.Kind,
			Dt:         cfg.Run.Dt,
			Duration:   cfg.Run.Duration,
		}, sys, result)
		if err != nil {
			return err
		}
		fmt.Printf("\nsaved run %s\n", id)
	}
	return nil
}

func listScenarios(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION\tDEFAULTS")
	for _, name := range scenario.Names() {
		sc, err := scenario.Get(name)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(sc.Defaults))
		for k := range sc.Defaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "%s\t%s\t%s\n", sc.Name, sc.Description, strings.Join(keys, ","))
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSCENARIO\tSCHEME\tDT\tDURATION\tCONTROLLER")
	for _, name := range config.ListPresets() {
		cfg, err := config.GetPreset(name)
		if err != nil {
			return err
		}
		ctrl := cfg.Controller.Kind
		if ctrl == "" {
			ctrl = "none"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%g\t%s\n",
			name, cfg.Scenario, cfg.Integrator.Scheme, cfg.Run.Dt, cfg.Run.Duration, ctrl)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tCREATED\tSCHEME\tCTRL\tDT\tDURATION\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%g\t%g\t%d\n",
			run.ID, run.Scenario, run.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			run.Scheme, run.Controller, run.Dt, run.Duration, run.Steps)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	tr, err := store.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run %s: %s, %d samples\n\n", meta.ID, meta.Scenario, len(tr.Rows))

	cols := []string{plotCol}
	if plotCol == "" {
		cols = cols[:0]
		for _, c := range tr.Columns {
			if strings.HasPrefix(c, "q_") {
				cols = append(cols, c)
			}
		}
	}
	for _, col := range cols {
		values := tr.Column(col)
		if values == nil {
			return fmt.Errorf("run has no column %q (have %s)", col, strings.Join(tr.Columns, ", "))
		}
		fmt.Println(viz.Plot(values, col, 80, 10))
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	sys, q0, v0, err := scenario.BuildNamed(cfg.Scenario, cfg.Params)
	if err != nil {
		return err
	}
	simr, err := sim.New(sys, q0, v0, cfg.Options())
	if err != nil {
		return err
	}
	ctrl, err := buildController(cfg, sys)
	if err != nil {
		return err
	}
	return viz.RunLive(viz.NewLive(simr, ctrl, cfg.Run.Dt, viewSpan, cfg.Scenario))
}

func runSweep(cmd *cobra.Command, args []string) error {
	var sw *experiment.Sweep
	if sweepSpec != "" {
		var err error
		sw, err = experiment.LoadSweep(sweepSpec)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			sw.Scenario = args[0]
		}
	} else {
		if len(args) == 0 || sweepParam == "" || sweepValues == "" {
			return fmt.Errorf("sweep needs a scenario plus --param and --values, or --spec")
		}
		values, err := parseFloats(sweepValues)
		if err != nil {
			return err
		}
		sw = &experiment.Sweep{
			Scenario: args[0],
			Param:    sweepParam,
			Values:   values,
			Dt:       dt,
			Duration: duration,
			Workers:  workers,
		}
	}
	points, err := sw.Run(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tENERGY ERR\tCONSTRAINT\tNEWTON\n", strings.ToUpper(sw.Param))
	energies := make([]float64, len(points))
	for i, pt := range points {
		energies[i] = pt.Energy
		fmt.Fprintf(w, "%g\t%.3g\t%.3g\t%.0f\n", pt.Value, pt.Energy, pt.Constraint, pt.Newton)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.Plot(energies, "peak energy error vs "+sw.Param, 60, 8))
	return nil
}

func runConverge(cmd *cobra.Command, args []string) error {
	dts, err := parseFloats(convDts)
	if err != nil {
		return err
	}

	conv := experiment.Convergence{
		Scenario: args[0],
		Dts:      dts,
		Duration: duration,
		Workers:  workers,
	}
	points, err := conv.Run(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DT\tENERGY ERR\tCONSTRAINT")
	for _, pt := range points {
		fmt.Fprintf(w, "%g\t%.3g\t%.3g\n", pt.Dt, pt.EnergyError, pt.Constraint)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nestimated convergence order: %.2f\n", experiment.EstimateOrder(points))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store, err := storage.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	id := args[0]
	switch exportFormat {
	case "json":
		return store.ExportJSON(exportOut, id)

	case "csv":
		src, err := os.Open(filepath.Join(store.Dir(), id, "trajectory.csv"))
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := openOut(exportOut)
		if err != nil {
			return err
		}
		defer dst.Close()
		_, err = io.Copy(dst, src)
		return err

	case "svg":
		meta, err := store.Load(id)
		if err != nil {
			return err
		}
		tr, err := store.LoadTrajectory(id)
		if err != nil {
			return err
		}
		sys, _, _, err := scenario.BuildNamed(meta.Scenario, meta.Params)
		if err != nil {
			return err
		}
		svg, err := export.TraceSVG(sys, svgFrames(sys), trajectoryConfigs(sys, tr), 800, 600)
		if err != nil {
			return err
		}
		dst, err := openOut(exportOut)
		if err != nil {
			return err
		}
		defer dst.Close()
		_, err = io.WriteString(dst, svg)
		return err

	default:
		return fmt.Errorf("unknown format %q (want json, csv or svg)", exportFormat)
	}
}

func svgFrames(sys *mech.System) []string {
	if exportFrames != "" {
		return strings.Split(exportFrames, ",")
	}
	var names []string
	for _, id := range sys.MassiveFrames() {
		names = append(names, sys.Frame(id).Name())
	}
	return names
}

// trajectoryConfigs reassembles configuration vectors from named CSV columns.
func trajectoryConfigs(sys *mech.System, tr *storage.Trajectory) [][]float64 {
	varNames := sys.VarNames()
	colIdx := make([]int, len(varNames))
	for i, name := range varNames {
		colIdx[i] = -1
		for j, c := range tr.Columns {
			if c == "q_"+name {
				colIdx[i] = j
				break
			}
		}
	}
	qs := make([][]float64, len(tr.Rows))
	for r, row := range tr.Rows {
		q := make([]float64, len(varNames))
		for i, j := range colIdx {
			if j >= 0 && j < len(row) {
				q[i] = row[j]
			}
		}
		qs[r] = q
	}
	return qs
}

func openOut(path string) (io.WriteCloser, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func parseFloats(csv string) ([]float64, error) {
	parts := strings.Split(csv, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q: %w", p, err)
		}
		values = append(values, x)
	}
	return values, nil
}
