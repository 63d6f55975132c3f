package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"outbreak/internal/config"
	"outbreak/internal/display"
	"outbreak/internal/domain"
	"outbreak/internal/journal"
	"outbreak/internal/lifecycle"
	"outbreak/internal/messaging/inproc"
	sqlitestore "outbreak/internal/store/sqlite"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitInvalidArgs = 2
)

type options struct {
	configPath string
	seed       uint64
	overrides  config.Config
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, fs := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return exitInvalidArgs
	}
	applyOverrides(fs, &cfg, opts.overrides)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		return exitInvalidArgs
	}

	logger := log.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store *sqlitestore.Store
	if cfg.Output.DBPath != "" {
		dbPath := filepath.Clean(cfg.Output.DBPath)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			logger.Printf("create db directory: %v", err)
			return exitFatal
		}
		store, err = sqlitestore.Open(dbPath)
		if err != nil {
			logger.Printf("open sqlite store: %v", err)
			return exitFatal
		}
		defer func() {
			_ = store.Close()
		}()
		if err := store.Migrate(ctx); err != nil {
			logger.Printf("migrate sqlite: %v", err)
			return exitFatal
		}
	}

	bus := inproc.New(1024)
	ctrl := lifecycle.New(lifecycle.Config{
		Simulation: cfg.Simulation,
		Seed:       opts.seed,
	}, bus, logger)
	b := ctrl.Board()
	startedAt := time.Now().UTC()

	var consumers sync.WaitGroup
	subscribe := func(name string, consume func(<-chan domain.Event)) error {
		ch, err := bus.Register(name)
		if err != nil {
			return fmt.Errorf("register %s subscriber: %w", name, err)
		}
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			consume(ch)
		}()
		return nil
	}

	var logFile *journal.FileWriter
	if cfg.Output.LogDir != "" {
		logFile, err = journal.NewFileWriter(cfg.Output.LogDir, journal.LogFileName(startedAt))
		if err != nil {
			logger.Printf("open game log: %v", err)
			return exitFatal
		}
		if err := logFile.WriteHeader(ctrl.RunID(), startedAt); err != nil {
			logger.Printf("game log header error: %v", err)
		}
		if err := subscribe("file", func(ch <-chan domain.Event) {
			if err := logFile.Consume(ch); err != nil {
				logger.Printf("game log write error: %v", err)
			}
		}); err != nil {
			logger.Printf("%v", err)
			return exitFatal
		}
	}
	if cfg.Output.RealtimeLog {
		console := journal.NewConsole(logger)
		if err := subscribe("console", console.Consume); err != nil {
			logger.Printf("%v", err)
			return exitFatal
		}
	}
	if store != nil {
		if err := store.CreateRun(ctx, domain.Run{
			ID:        ctrl.RunID(),
			BoardSize: cfg.Simulation.BoardSize,
			Humans:    cfg.Simulation.Humans,
			Zombies:   cfg.Simulation.Zombies,
			Strategy:  cfg.Simulation.Strategy(),
			StartedAt: startedAt,
		}); err != nil {
			logger.Printf("create run: %v", err)
			return exitFatal
		}
		recorder := journal.NewRecorder(store, journal.RecorderConfig{}, logger)
		if err := subscribe("recorder", recorder.Consume); err != nil {
			logger.Printf("%v", err)
			return exitFatal
		}
	}

	var server *http.Server
	if cfg.Server.Addr != "" {
		a := &api{cfg: cfg, runID: ctrl.RunID(), board: b, events: bus}
		if store != nil {
			a.store = store
		}
		server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           loggingMiddleware(a.routes()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("http server failed: %v", err)
			}
		}()
	}

	logger.Printf(
		"outbreak started run=%s size=%d humans=%d zombies=%d strategy=%s display=%s",
		ctrl.RunID(),
		cfg.Simulation.BoardSize,
		cfg.Simulation.Humans,
		cfg.Simulation.Zombies,
		cfg.Simulation.Strategy(),
		cfg.Display.Mode,
	)

	res, runErr := runGame(ctx, cancel, cfg, ctrl, subscribe)
	if runErr != nil {
		logger.Printf("game error: %v", runErr)
	}

	bus.Close()
	consumers.Wait()
	if dropped := bus.Dropped(); dropped > 0 {
		logger.Printf("event bus dropped %d events", dropped)
	}

	if logFile != nil {
		if err := logFile.WriteFooter(res.Winner, res.Stats); err != nil {
			logger.Printf("game log footer error: %v", err)
		}
		if err := logFile.Close(); err != nil {
			logger.Printf("game log close error: %v", err)
		}
		logger.Printf("game log written to %s", logFile.Path())
	}
	if store != nil {
		raw, err := json.Marshal(res.Stats)
		if err != nil {
			logger.Printf("encode stats: %v", err)
		}
		finishCtx, finishCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.FinishRun(finishCtx, res.RunID, res.Winner, raw, time.Now()); err != nil {
			logger.Printf("finish run: %v", err)
		}
		finishCancel()
	}
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	fmt.Print(display.FormatStats(res.Winner, res.Stats))
	return exitOK
}

type subscribeFunc func(name string, consume func(<-chan domain.Event)) error

// runGame runs the controller alongside the configured renderer.
func runGame(ctx context.Context, stop context.CancelFunc, cfg config.Config, ctrl *lifecycle.Controller, subscribe subscribeFunc) (lifecycle.Result, error) {
	src := display.Local(ctrl.Board())
	switch cfg.Display.Mode {
	case config.DisplayTUI:
		tui := display.NewTUI(fmt.Sprintf("Outbreak %s", shortID(ctrl.RunID())))
		if err := subscribe("tui", func(ch <-chan domain.Event) {
			for ev := range ch {
				tui.AppendEvent(journal.FormatLine(ev))
			}
		}); err != nil {
			log.Printf("%v", err)
		}

		type outcome struct {
			res lifecycle.Result
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := ctrl.Run(ctx)
			done <- outcome{res: res, err: err}
		}()
		if err := tui.Run(ctx, src, cfg.Display.Interval()); err != nil {
			log.Printf("tui error: %v", err)
		}
		// Leaving the TUI before the game is over interrupts it.
		stop()
		out := <-done
		return out.res, out.err

	case config.DisplayText:
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := display.Loop(ctx, src, os.Stdout, cfg.Display.Interval()); err != nil {
				log.Printf("display error: %v", err)
			}
		}()
		res, err := ctrl.Run(ctx)
		wg.Wait()
		return res, err

	default:
		return ctrl.Run(ctx)
	}
}

func parseFlags() (options, *flag.FlagSet) {
	var opts options
	o := &opts.overrides
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	fs.StringVar(&opts.configPath, "config", "", "path to config.toml (default: ~/.outbreak/config.toml)")
	fs.Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")

	fs.IntVar(&o.Simulation.BoardSize, "size", 0, "board side length")
	fs.IntVar(&o.Simulation.Humans, "humans", 0, "initial number of humans")
	fs.IntVar(&o.Simulation.Zombies, "zombies", 0, "initial number of zombies")
	fs.Float64Var(&o.Simulation.CooldownMin, "cooldown-min", 0, "minimum seconds between moves")
	fs.Float64Var(&o.Simulation.CooldownMax, "cooldown-max", 0, "maximum seconds between moves")
	fs.Float64Var(&o.Simulation.GameTimeout, "timeout", 0, "game timeout in seconds (0 disables)")
	fs.Float64Var(&o.Simulation.PositionWaitTimeout, "wait-timeout", 0, "seconds to wait for a busy cell")
	fs.Float64Var(&o.Simulation.HumanBias, "human-bias", 0, "probability that a human steps towards the goal")
	fs.BoolVar(&o.Simulation.HumanBiasDisabled, "no-human-bias", false, "disable the forward preference of humans")
	fs.StringVar(&o.Simulation.ZombieStrategy, "strategy", "", "zombie strategy: RANDOM, PURSUIT or BLOCKING")
	fs.IntVar(&o.Simulation.ZombieRange, "zombie-range", 0, "zombie perception range")
	fs.StringVar(&o.Simulation.ZombiePlacement, "placement", "", "zombie placement: edge or scattered")

	fs.StringVar(&o.Display.Mode, "display", "", "display mode: text, tui or none")
	fs.Float64Var(&o.Display.Rate, "display-rate", 0, "seconds between redraws")
	fs.StringVar(&o.Output.LogDir, "log-dir", "", "game log directory (empty disables)")
	fs.StringVar(&o.Output.DBPath, "db", "", "sqlite run history path (empty disables)")
	fs.BoolVar(&o.Output.RealtimeLog, "realtime-log", false, "echo events to the log as they happen")
	fs.StringVar(&o.Server.Addr, "addr", "", "http listen address for the read API")

	_ = fs.Parse(os.Args[1:])
	return opts, fs
}

// applyOverrides copies every explicitly set flag onto cfg.
func applyOverrides(fs *flag.FlagSet, cfg *config.Config, o config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "size":
			cfg.Simulation.BoardSize = o.Simulation.BoardSize
		case "humans":
			cfg.Simulation.Humans = o.Simulation.Humans
		case "zombies":
			cfg.Simulation.Zombies = o.Simulation.Zombies
		case "cooldown-min":
			cfg.Simulation.CooldownMin = o.Simulation.CooldownMin
		case "cooldown-max":
			cfg.Simulation.CooldownMax = o.Simulation.CooldownMax
		case "timeout":
			cfg.Simulation.GameTimeout = o.Simulation.GameTimeout
		case "wait-timeout":
			cfg.Simulation.PositionWaitTimeout = o.Simulation.PositionWaitTimeout
		case "human-bias":
			cfg.Simulation.HumanBias = o.Simulation.HumanBias
		case "no-human-bias":
			cfg.Simulation.HumanBiasDisabled = o.Simulation.HumanBiasDisabled
		case "strategy":
			cfg.Simulation.ZombieStrategy = o.Simulation.ZombieStrategy
		case "zombie-range":
			cfg.Simulation.ZombieRange = o.Simulation.ZombieRange
		case "placement":
			cfg.Simulation.ZombiePlacement = o.Simulation.ZombiePlacement
		case "display":
			cfg.Display.Mode = o.Display.Mode
		case "display-rate":
			cfg.Display.Rate = o.Display.Rate
		case "log-dir":
			cfg.Output.LogDir = o.Output.LogDir
		case "db":
			cfg.Output.DBPath = o.Output.DBPath
		case "realtime-log":
			cfg.Output.RealtimeLog = o.Output.RealtimeLog
		case "addr":
			cfg.Server.Addr = o.Server.Addr
		}
	})
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
