package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/gurkebaui/sun/internal/codec"
	"github.com/gurkebaui/sun/internal/config"
	"github.com/gurkebaui/sun/internal/inference"
	"github.com/gurkebaui/sun/internal/interior"
	"github.com/gurkebaui/sun/internal/logging"
	"github.com/gurkebaui/sun/internal/logx"
	"github.com/gurkebaui/sun/internal/memory"
	"github.com/gurkebaui/sun/internal/monitor"
	"github.com/gurkebaui/sun/internal/orchestrator"
	"github.com/gurkebaui/sun/internal/perception"
	"github.com/gurkebaui/sun/internal/state"
	"github.com/gurkebaui/sun/internal/vigilance"
)

const sidecar = "sidecar"

// #region main
func main() {
	envFile := flag.String("env", ".env", "env file to load before reading the environment")
	verbose := flag.Bool("v", false, "print thoughts as well as answers")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logx.Init(logx.Options{Environment: logx.ParseEnvironment(cfg.Env), Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *verbose); err != nil && !errors.Is(err, context.Canceled) {
		logx.Fatal().Err(err).Msg("agent stopped")
	}
}

// #endregion main

// #region wiring

func run(ctx context.Context, cfg config.AppConfig, verbose bool) error {
	log := logx.Component("main")

	// snapshots, provenance and the journal share one database
	store, err := state.NewStore(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	journal, err := interior.NewJournal(store.DB())
	if err != nil {
		return err
	}

	var client *codec.Client
	if cfg.Memory.Backend == sidecar || cfg.Perception == sidecar || slices.Contains(cfg.Inference.Providers, sidecar) {
		client, err = codec.NewClient(cfg.Inference.SidecarAddr)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	var mem memory.Store
	if cfg.Memory.Backend == sidecar {
		mem = client
	} else {
		mem, err = memory.Open(ctx, cfg.Memory)
		if err != nil {
			return fmt.Errorf("open memory: %w", err)
		}
		defer mem.Close()
	}

	extra := map[string]inference.Backend{}
	if client != nil {
		extra[sidecar] = client
	}
	gen, err := inference.Build(ctx, cfg.Inference, extra)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}

	var source perception.Source = perception.NewQueue(perception.Report{})
	var telegram *perception.TelegramSource
	switch cfg.Perception {
	case "telegram":
		telegram, err = perception.NewTelegramSource(cfg.Telegram, perception.Report{})
		if err != nil {
			return err
		}
		go telegram.Run(ctx)
		source = telegram
	case sidecar:
		source = client
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	inputs := make(chan string)
	say := func(text string) {
		select {
		case inputs <- text:
		case <-loopCtx.Done():
		}
	}

	var agent *orchestrator.Agent
	hub := monitor.NewHub(monitor.Handlers{
		Stimulus: func(s vigilance.Stimulus) bool { return agent.HandleStimulus(s) },
		Say:      say,
		Status:   func() any { return agent.Status() },
	})

	printer := &tickPrinter{out: os.Stdout, verbose: verbose}
	agent, err = orchestrator.New(cfg.Agent, cfg.Regulator, cfg.Vigilance, orchestrator.Deps{
		Generator:  gen,
		Memory:     mem,
		Perception: source,
		Recorder:   logging.NewRecorder(store.DB()),
		Snapshots:  store,
		Journal:    journal,
		Observer: func(res orchestrator.TickResult, err error) {
			hub.Broadcast(tickEvent(res, err))
			printer.print(res, err)
			if answer, ok := chatReply(res); ok && telegram != nil {
				if err := telegram.Reply(answer); err != nil {
					log.Warn().Err(err).Msg("telegram reply failed")
				}
			}
		},
	})
	if err != nil {
		return err
	}

	if snap, err := store.GetCurrent(); err == nil {
		if err := agent.Restore(snap); err != nil {
			return err
		}
		log.Info().Str("version", snap.VersionID).Int64("tick", snap.Tick).Msg("resumed from snapshot")
	}

	if cfg.TuningFile != "" {
		if t, err := config.LoadTuning(cfg.TuningFile, cfg.Tuning()); err == nil {
			agent.Retune(t.Regulator, t.Vigilance)
		} else {
			log.Warn().Err(err).Msg("initial tuning not applied")
		}
		go func() {
			err := config.WatchTuning(ctx, cfg.TuningFile, cfg.Tuning(), func(t config.Tuning) {
				agent.Retune(t.Regulator, t.Vigilance)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("tuning watcher stopped")
			}
		}()
	}

	go func() {
		if err := hub.Serve(loopCtx, cfg.Monitor); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("monitor stopped")
		}
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		agent.Run(loopCtx, inputs)
	}()

	// stdin reads cannot be interrupted, so a signal does not wait for the REPL
	r := &repl{agent: agent, mem: mem, say: say, out: os.Stdout}
	done := make(chan error, 1)
	go func() { done <- r.loop(loopCtx, os.Stdin) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()

	// stores close on return, so the loop and any REPL tick must be done first
	<-runDone
	snap := agent.SnapshotIdle()
	snap.Trigger = "shutdown"
	if _, cerr := store.Commit(snap); cerr != nil {
		log.Warn().Err(cerr).Msg("shutdown snapshot failed")
	}
	fmt.Println("System shut down.")
	return err
}

// #endregion wiring
