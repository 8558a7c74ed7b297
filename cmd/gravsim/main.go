package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
	"github.com/san-kum/gravsim/internal/tui"
)

var (
	dataDir     string
	logLevel    string
	configFile  string
	dt          float64
	duration    float64
	seed        int64
	forceMode   string
	backendName string
	sampleEvery int
	watch       bool
	frameRate   int
	exportPath  string
	eventKind   string
	theme       string
	benchSizes  []int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gravsim",
		Short: "gravitational n-body simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dataDir = viper.GetString("data")
			logLevel = viper.GetString("log-level")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(tui.WithTheme(theme))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "viewer theme")
	viper.BindPFlag("data", rootCmd.PersistentFlags().Lookup("data"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("GRAVSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a headless simulation and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml or toml)")
	runCmd.Flags().Float64Var(&dt, "dt", 0.01, "time step")
	runCmd.Flags().Float64Var(&duration, "time", 10.0, "simulated duration")
	runCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	runCmd.Flags().StringVar(&forceMode, "mode", "", "force mode (direct, tree, auto)")
	runCmd.Flags().StringVar(&backendName, "backend", "", "tree backend ("+strings.Join(append(compute.Names(), "process"), ", ")+")")
	runCmd.Flags().IntVar(&sampleEvery, "sample", 10, "record stats every n steps")
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "render frames while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --watch")
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write the run as JSON to this file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot body count, mass and energy of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	eventsCmd := &cobra.Command{
		Use:   "events [run_id]",
		Short: "print the event log of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listEvents,
	}
	eventsCmd.Flags().StringVar(&eventKind, "kind", "", "only show events of this kind")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBODIES\tGROUPS\tDURATION")
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				n := len(cfg.Bodies)
				for _, g := range cfg.Groups {
					n += g.Count
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%.0f\n", name, n, len(cfg.Groups), cfg.Duration)
			}
			w.Flush()
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare direct and tree force evaluation",
		RunE:  benchForces,
	}
	benchCmd.Flags().IntSliceVar(&benchSizes, "sizes", []int{100, 500, 2000}, "body counts")
	benchCmd.Flags().StringVar(&backendName, "backend", "tree", "tree backend")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, eventsCmd, presetsCmd, benchCmd,
		newLiveCmd(), newServeCmd(), newWorkerCmd(), newSnapshotCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig resolves the preset and config file, then applies any flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (string, *config.Config, error) {
	name := "custom"
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		name = args[0]
		cfg = config.GetPreset(name)
		if cfg == nil {
			return "", nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if cfg.Name != "" && len(args) == 0 {
			name = cfg.Name
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("mode") {
		cfg.Gravity.ForceMode = forceMode
	}
	if flags.Changed("backend") && backendName != "process" {
		cfg.Gravity.Backend = backendName
	}
	return name, cfg, cfg.Validate()
}

// worldOptions wires the logger and, for --backend process, a tree
// backend running in a child gravsim worker.
func worldOptions(log *slog.Logger) ([]sim.Option, error) {
	opts := []sim.Option{sim.WithLogger(log)}
	if backendName != "process" {
		return opts, nil
	}
	be, err := startProcessBackend()
	if err != nil {
		return nil, err
	}
	return append(opts, sim.WithBackend(be)), nil
}

type procCloser struct {
	cmd   *exec.Cmd
	stdin interface{ Close() error }
}

func (p procCloser) Close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

func startProcessBackend() (compute.Backend, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	child := exec.Command(self, "worker")
	child.Stderr = os.Stderr
	stdin, err := child.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := child.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := child.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	return compute.NewStreamBackend(stdout, stdin, procCloser{cmd: child, stdin: stdin}), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	name, cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive for a stored run")
	}

	log := newLogger()
	opts, err := worldOptions(log)
	if err != nil {
		return err
	}
	w, err := cfg.Build(opts...)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, m := range metrics.Standard() {
		w.AddMetric(m)
	}
	w.AddMetric(metrics.NewStability(0.05))

	if watch {
		live := tui.NewLiveRenderer(w, os.Stdout, frameRate, 100, 32)
		live.Start()
		defer live.Stop()
		w.AddObserver(live)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s (%d bodies)...\n", name, w.Registry().Len())
	start := time.Now()
	result, err := w.Run(ctx, sampleEvery)
	if err != nil && result == nil {
		return err
	}
	elapsed := time.Since(start)

	scfg := w.Config()
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, saveErr := st.Save(name, scfg, result)
	if saveErr != nil {
		return saveErr
	}

	if exportPath != "" {
		f, ferr := os.Create(exportPath)
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		if ferr := storage.Export(f, name, scfg, result); ferr != nil {
			return ferr
		}
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Printf("events: %d\n", len(result.Events))
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for n := range result.Metrics {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		fmt.Printf("  %s: %.6f\n", n, result.Metrics[n])
	}
	return err
}

func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return st.Latest()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRESET\tTIME\tDURATION\tDT\tMODE\tBODIES\tEVENTS\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.4f\t%s\t%d\t%d\t%.2e\n",
			run.ID,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.ForceMode,
			run.Bodies,
			run.Events,
			run.Drift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("preset: %s\n", meta.Preset)
	fmt.Printf("samples: %d\n\n", len(series))

	plots := []struct {
		caption string
		value   func(sim.Stats) float64
	}{
		{"bodies", func(s sim.Stats) float64 { return float64(s.Bodies) }},
		{"total mass", func(s sim.Stats) float64 { return s.Mass }},
		{"total energy", sim.Stats.Energy},
		{"angular momentum", func(s sim.Stats) float64 { return s.AngularMomentum }},
	}
	for _, p := range plots {
		data := make([]float64, len(series))
		for i, s := range series {
			data[i] = p.value(s)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func listEvents(cmd *cobra.Command, args []string) error {
	var filter events.Kind
	if eventKind != "" {
		k, err := events.ParseKind(eventKind)
		if err != nil {
			return err
		}
		filter = k
	}

	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	evs, err := st.LoadEvents(runID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tKIND\tBODIES\tRESULT\tMASS\tDETAIL")
	for _, e := range evs {
		if filter != "" && e.Kind != filter {
			continue
		}
		parts, _ := json.Marshal(e.Participants)
		fmt.Fprintf(w, "%d\t%.3f\t%s\t%s\t%s\t%.3f\t%s\n",
			e.Seq, e.Time, e.Kind, parts, e.ResultType, e.Mass, e.Detail)
	}
	return w.Flush()
}

func benchForces(cmd *cobra.Command, args []string) error {
	const steps = 20
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BODIES\tMODE\tSTEPS\tTIME\tSTEPS/SEC")

	for _, n := range benchSizes {
		for _, mode := range []string{"direct", "tree"} {
			cfg := config.DefaultConfig()
			cfg.Name = "bench"
			cfg.BoundsRadius = 0
			cfg.Gravity.ForceMode = mode
			cfg.Gravity.Backend = backendName
			cfg.Groups = []config.Group{
				{Type: "asteroid", Count: n, OuterRadius: 1000, MinMass: 0.1, MaxMass: 1, Dispersion: 0.1},
			}
			world, err := cfg.Build()
			if err != nil {
				return err
			}

			start := time.Now()
			for i := 0; i < steps; i++ {
				if err := world.Step(cfg.Dt); err != nil {
					world.Close()
					return err
				}
			}
			elapsed := time.Since(start)
			world.Close()

			fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.0f\n",
				n, mode, steps, elapsed.Round(time.Microsecond), float64(steps)/elapsed.Seconds())
		}
	}
	return w.Flush()
}
