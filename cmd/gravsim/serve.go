package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
	"github.com/san-kum/gravsim/internal/stream"
	"github.com/san-kum/gravsim/internal/tui"
)

var (
	listenAddr string
	withTrails bool
)

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "open the interactive viewer on a preset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			opts, err := worldOptions(newLogger())
			if err != nil {
				return err
			}
			w, err := cfg.Build(opts...)
			if err != nil {
				return err
			}

			viewer := []tui.Option{tui.WithWorld(name, w), tui.WithTheme(theme)}
			if configFile != "" {
				watcher, err := config.NewWatcher(configFile)
				if err != nil {
					w.Close()
					return err
				}
				defer watcher.Stop()
				viewer = append(viewer, tui.WithChanges(watcher.Changes))
			}
			return tui.Run(viewer...)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file, reloaded on change")
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "time step")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&forceMode, "mode", "", "force mode (direct, tree, auto)")
	cmd.Flags().StringVar(&backendName, "backend", "", "tree backend")
	cmd.Flags().StringVar(&theme, "theme", "cyberpunk", "viewer theme")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [preset]",
		Short: "stream frames over websocket and expose prometheus metrics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serveSimulation,
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml or toml)")
	cmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address")
	cmd.Flags().Float64Var(&dt, "dt", 0.01, "time step")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated duration, 0 runs until interrupted")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().StringVar(&forceMode, "mode", "", "force mode (direct, tree, auto)")
	cmd.Flags().StringVar(&backendName, "backend", "", "tree backend")
	cmd.Flags().IntVar(&frameRate, "fps", 30, "frames per second")
	cmd.Flags().BoolVar(&withTrails, "trails", false, "include trails in frames")
	return cmd
}

func serveSimulation(cmd *cobra.Command, args []string) error {
	name, cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("time") && configFile == "" {
		cfg.Duration = 0
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

	collector := metrics.NewCollector()
	w.AddObserver(collector)

	hub := stream.NewHub(log)
	defer hub.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	log.Info("serving", "preset", name, "addr", listenAddr, "bodies", w.Registry().Len())
	fmt.Printf("serving %s on %s (ws: /ws, metrics: /metrics)\n", name, listenAddr)

	frameEvery := time.Second / time.Duration(max(frameRate, 1))
	lastFrame := time.Time{}
	var pending []events.Event
	runErr := w.RunWithCallback(ctx, func(s sim.Stats, evs []events.Event) bool {
		pending = append(pending, evs...)
		if time.Since(lastFrame) < frameEvery {
			return true
		}
		lastFrame = time.Now()
		if err := hub.Publish(stream.NewFrame(w, pending, withTrails)); err != nil {
			log.Warn("publish failed", "error", err)
		}
		pending = pending[:0]
		w.Events()
		select {
		case err, ok := <-errc:
			if ok {
				log.Error("server stopped", "error", err)
			}
			return false
		default:
			return true
		}
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "answer force requests on stdin/stdout",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			be, err := compute.ByName(backendName)
			if err != nil {
				return err
			}
			defer be.Cleanup()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return compute.Serve(ctx, os.Stdin, os.Stdout, be)
		},
	}
	cmd.Flags().StringVar(&backendName, "backend", "tree", "backend evaluating requests")
	return cmd
}

func openSnapshots(ctx context.Context) (*storage.SnapshotDB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	return storage.OpenSnapshotDB(ctx, filepath.Join(dataDir, "snapshots.db"))
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "save, restore and list world snapshots",
	}

	saveCmd := &cobra.Command{
		Use:   "save [name] [preset]",
		Short: "run a preset and store the final world",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd, args[1:])
			if err != nil {
				return err
			}
			w, err := cfg.Build(sim.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := cmd.Context()
			if cfg.Duration > 0 {
				if _, err := w.Run(ctx, 0); err != nil {
					return err
				}
			}
			db, err := openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Save(ctx, args[0], w.Tick(), w.Time(), w.Bodies()); err != nil {
				return err
			}
			fmt.Printf("saved %s: tick %d, %d bodies\n", args[0], w.Tick(), w.Registry().Len())
			return nil
		},
	}
	saveCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml or toml)")
	saveCmd.Flags().Float64Var(&duration, "time", 10, "simulated duration before saving")
	saveCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")

	restoreCmd := &cobra.Command{
		Use:   "restore [name]",
		Short: "continue a stored world and record the run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openSnapshots(ctx)
			if err != nil {
				return err
			}
			info, snaps, err := db.Load(ctx, args[0])
			db.Close()
			if err != nil {
				return err
			}

			cfg := config.DefaultConfig()
			cfg.Duration = duration
			w, err := cfg.Build(sim.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Restore(snaps); err != nil {
				return err
			}
			for _, m := range metrics.Standard() {
				w.AddMetric(m)
			}

			result, err := w.Run(ctx, sampleEvery)
			if err != nil && result == nil {
				return err
			}
			st := storage.New(dataDir)
			if err := st.Init(); err != nil {
				return err
			}
			runID, err := st.Save("snapshot:"+info.Name, w.Config(), result)
			if err != nil {
				return err
			}
			fmt.Printf("restored %s (%d bodies from tick %d)\n", info.Name, info.Bodies, info.Tick)
			fmt.Printf("run id: %s\n", runID)
			return nil
		},
	}
	restoreCmd.Flags().Float64Var(&duration, "time", 10, "simulated duration after restoring")
	restoreCmd.Flags().IntVar(&sampleEvery, "sample", 10, "record stats every n steps")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			infos, err := db.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTICK\tTIME\tBODIES\tCREATED")
			for _, in := range infos {
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\t%s\n",
					in.Name, in.Tick, in.Time, in.Bodies, in.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [name]",
		Short: "delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openSnapshots(ctx)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Delete(ctx, args[0])
		},
	}

	cmd.AddCommand(saveCmd, restoreCmd, listCmd, deleteCmd)
	return cmd
}
