package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/config"
	"github.com/glosings0n/Vut-Elimu/events"
	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/lifecycle"
	"github.com/glosings0n/Vut-Elimu/live"
	"github.com/glosings0n/Vut-Elimu/logger"
	"github.com/glosings0n/Vut-Elimu/metrics"
	"github.com/glosings0n/Vut-Elimu/playback"
	"github.com/glosings0n/Vut-Elimu/results"
	"github.com/glosings0n/Vut-Elimu/telemetry"
)

const shutdownTimeout = 5 * time.Second

// errQuit ends the run group when the player quits.
var errQuit = errors.New("quit")

var playFlags = []string{
	"config", "mode", "level", "word", "text", "simulate",
	"metrics-addr", "redis-addr", "otlp-endpoint", "order", "seed",
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a live game session",
	Long: `Open a live session for one game mode and stream the microphone (or the
camera in sign mode) to the model. Keys, each followed by Enter:

  m  toggle microphone
  v  toggle camera
  n  next word or question
  r  retry after a connection error
  q  quit

The API key is read from VUTELIMU_API_KEY or GEMINI_API_KEY. Use --simulate
to play against a local coach without network access.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlay(cmd)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	f := playCmd.Flags()
	f.StringP("config", "c", "", "LiveGame manifest path")
	f.StringP("mode", "m", "", "Game mode ("+modeList()+")")
	f.IntP("level", "l", 0, "Starting level")
	f.String("word", "", "Target word for speak mode")
	f.String("text", "", "Passage for read mode")
	f.Bool("simulate", false, "Play against a local simulated coach")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	f.String("redis-addr", "", "Store results in Redis at this address")
	f.String("otlp-endpoint", "", "Export traces to this OTLP HTTP endpoint")
	f.String("order", "", "Playback order (completion or arrival)")
	f.Uint64("seed", 0, "Word picker seed (0 picks one from the clock)")

	for _, name := range playFlags {
		_ = viper.BindPFlag(name, f.Lookup(name))
	}
	_ = viper.BindEnv("api-key", envPrefix+"_API_KEY", "GEMINI_API_KEY")
}

func modeList() string {
	modes := game.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// loadPlayConfig reads the manifest, if any, and applies flag and
// environment overrides.
func loadPlayConfig() (*config.LiveGame, error) {
	cfg := config.Default()
	if path := viper.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	s := &cfg.Spec
	overrideString("mode", &s.Game.Mode)
	overrideString("word", &s.Game.Word)
	overrideString("text", &s.Game.Text)
	overrideString("metrics-addr", &s.Metrics.Addr)
	overrideString("redis-addr", &s.Results.RedisAddr)
	overrideString("otlp-endpoint", &s.Tracing.Endpoint)
	overrideString("order", &s.Playback.OrderPolicy)
	if level := viper.GetInt("level"); level > 0 {
		s.Game.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(key string, dst *string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}

func runPlay(cmd *cobra.Command) error {
	cfg, err := loadPlayConfig()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LoggingConfig()); err != nil {
		return err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetVerbose(true)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := viper.GetUint64("seed")
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1))

	content, err := cfg.Content(func(current string) string { return game.NextWord(rng, current) })
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	bus.SubscribeAll(metrics.NewListener().Listener())

	if cfg.Spec.Tracing.Endpoint != "" {
		shutdown, err := setupTracing(ctx, cfg, bus)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	store, closeStore := openStore(cfg)
	defer closeStore()
	recorder := results.NewRecorder(store, 0)
	// Drain queued scores before the store goes away.
	defer recorder.Close()

	closeAudio, err := initAudio()
	if err != nil {
		return err
	}
	defer closeAudio()

	ui := newConsole(cmd.OutOrStdout())
	board := game.NewScoreboard(content.Level)
	board.OnChange = ui.standing
	board.OnLevelUp = ui.levelUp

	failures := make(chan *live.ConnectionError, 1)
	lcfg := lifecycle.Config{
		Live:         cfg.LiveConfig(viper.GetString("api-key")),
		FrameSize:    cfg.Spec.Capture.FrameSize,
		Video:        cfg.VideoConfig(),
		OrderPolicy:  cfg.OrderPolicy(),
		SettleDelay:  cfg.Spec.Session.SettleDelay,
		AdvanceDelay: cfg.Spec.Session.AdvanceDelay,
		Advancer:     lifecycle.NewRandomAdvancer(seed),
		Bus:          bus,
		Scores:       board,
		Results:      recorder,
		Transcripts:  ui,
		OnSpeaking:   ui.speaking,
		OnAbort:      ui.abort,
		OnError: func(err *live.ConnectionError) {
			select {
			case failures <- err:
			default:
			}
		},
	}

	if viper.GetBool("simulate") {
		coach := newCoach(defaultCoachEvery)
		srv := coach.start()
		defer srv.Close()
		lcfg.Live.Endpoint = srv.URL()
		lcfg.Live.APIKey = "simulated"
		lcfg.Device = &capture.SyntheticDevice{Realtime: true}
		lcfg.Outputs = playback.VirtualOutputFactory(10 * time.Millisecond)
		ui.notice("simulated coach listening on %s", srv.URL())
	} else {
		if lcfg.Live.APIKey == "" {
			return errors.New("no API key: set VUTELIMU_API_KEY or GEMINI_API_KEY, or use --simulate")
		}
		lcfg.Device = &capture.SystemDevice{}
		lcfg.Outputs = playback.PortAudioOutputFactory()
	}

	mgr := lifecycle.NewManager(lcfg)
	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.Spec.Metrics.Addr; addr != "" {
		exporter := metrics.NewExporter(addr)
		g.Go(func() error {
			if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics exporter: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return exporter.Shutdown(sctx)
		})
		ui.notice("metrics on %s/metrics", addr)
	}

	if err := mgr.Open(gctx, content); err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	ui.opened(content)

	g.Go(func() error {
		s := &session{mgr: mgr, ui: ui, rng: rng, keys: readKeys(os.Stdin), failures: failures}
		return s.run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func setupTracing(ctx context.Context, cfg *config.LiveGame, bus *events.Bus) (func(), error) {
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Spec.Tracing.Endpoint, cfg.Spec.Tracing.ServiceName)
	if err != nil {
		return nil, err
	}
	telemetry.SetupPropagation()
	listener := telemetry.NewListener(telemetry.Tracer(tp), context.WithoutCancel(ctx))
	bus.SubscribeAll(listener.OnEvent)
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}, nil
}

// openStore returns the Redis results store when an address is configured
// and an in-memory one otherwise.
func openStore(cfg *config.LiveGame) (results.Store, func()) {
	r := cfg.Spec.Results
	if r.RedisAddr == "" {
		return results.NewMemoryStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: r.RedisAddr})
	store := results.NewRedisStore(client, results.WithTTL(r.TTL), results.WithPrefix(r.Prefix))
	return store, func() { _ = client.Close() }
}
