// Package config loads LiveGame manifests.
//
// A manifest is a K8s-style YAML document:
//
//	apiVersion: vutelimu.glosings0n.dev/v1alpha1
//	kind: LiveGame
//	metadata:
//	  name: classroom
//	spec:
//	  game:
//	    mode: speak
//	    level: 2
//
// Loading validates the raw document against an embedded JSON schema, fills
// in defaults, then runs typed validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glosings0n/Vut-Elimu/capture"
	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/lifecycle"
	"github.com/glosings0n/Vut-Elimu/live"
	"github.com/glosings0n/Vut-Elimu/logger"
	"github.com/glosings0n/Vut-Elimu/playback"
)

// Manifest identity.
const (
	APIVersion = "vutelimu.glosings0n.dev/v1alpha1"
	Kind       = "LiveGame"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultMetricsAddr  = ":9464"
	DefaultServiceName  = "vutelimu"
	DefaultResultPrefix = "vutelimu"
	DefaultResultTTL    = 7 * 24 * time.Hour
)

// ObjectMeta is the manifest metadata block.
type ObjectMeta struct {
	Name   string            `yaml:"name,omitempty"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// LiveGame is the top-level manifest.
type LiveGame struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Spec       `yaml:"spec"`
}

// Spec is the LiveGame configuration.
type Spec struct {
	Live     LiveSpec     `yaml:"live,omitempty"`
	Game     GameSpec     `yaml:"game,omitempty"`
	Capture  CaptureSpec  `yaml:"capture,omitempty"`
	Playback PlaybackSpec `yaml:"playback,omitempty"`
	Session  SessionSpec  `yaml:"session,omitempty"`
	Results  ResultsSpec  `yaml:"results,omitempty"`
	Metrics  MetricsSpec  `yaml:"metrics,omitempty"`
	Tracing  TracingSpec  `yaml:"tracing,omitempty"`
	Logging  LoggingSpec  `yaml:"logging,omitempty"`
}

// LiveSpec configures the model endpoint. The API key is never read from
// the manifest.
type LiveSpec struct {
	Endpoint     string        `yaml:"endpoint,omitempty"`
	Model        string        `yaml:"model,omitempty"`
	Voice        string        `yaml:"voice,omitempty"`
	SetupTimeout time.Duration `yaml:"setupTimeout,omitempty"`
	DialTimeout  time.Duration `yaml:"dialTimeout,omitempty"`
}

// GameSpec selects the initial content.
type GameSpec struct {
	Mode  string `yaml:"mode,omitempty"`
	Level int    `yaml:"level,omitempty"`
	Word  string `yaml:"word,omitempty"`
	Text  string `yaml:"text,omitempty"`
}

// CaptureSpec tunes microphone framing and camera snapshots.
type CaptureSpec struct {
	FrameSize     int           `yaml:"frameSize,omitempty"`
	VideoInterval time.Duration `yaml:"videoInterval,omitempty"`
	VideoScale    float64       `yaml:"videoScale,omitempty"`
	JPEGQuality   int           `yaml:"jpegQuality,omitempty"`
}

// PlaybackSpec configures model audio playback.
type PlaybackSpec struct {
	// OrderPolicy is "completion" (default) or "arrival".
	OrderPolicy string `yaml:"orderPolicy,omitempty"`
}

// SessionSpec configures restart timing.
type SessionSpec struct {
	SettleDelay  time.Duration `yaml:"settleDelay,omitempty"`
	AdvanceDelay time.Duration `yaml:"advanceDelay,omitempty"`
}

// ResultsSpec configures the score handoff. An empty RedisAddr keeps
// results in memory.
type ResultsSpec struct {
	RedisAddr string        `yaml:"redisAddr,omitempty"`
	Prefix    string        `yaml:"prefix,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// MetricsSpec configures the Prometheus exporter. An empty Addr disables it.
type MetricsSpec struct {
	Addr string `yaml:"addr,omitempty"`
}

// TracingSpec configures OTLP tracing. An empty Endpoint disables it.
type TracingSpec struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// LoggingSpec configures the global logger.
type LoggingSpec struct {
	Level        string            `yaml:"level,omitempty"`
	Format       string            `yaml:"format,omitempty"`
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
}

// Default returns a manifest with every default applied.
func Default() *LiveGame {
	cfg := &LiveGame{APIVersion: APIVersion, Kind: Kind}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and validates a manifest file.
func Load(filename string) (*LiveGame, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse validates data against the schema, decodes it, applies defaults and
// runs Validate.
func Parse(data []byte) (*LiveGame, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var cfg LiveGame
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *LiveGame) ApplyDefaults() {
	s := &c.Spec
	if s.Live.Endpoint == "" {
		s.Live.Endpoint = live.DefaultEndpoint
	}
	if s.Live.Model == "" {
		s.Live.Model = live.DefaultModel
	}
	if s.Live.Voice == "" {
		s.Live.Voice = live.DefaultVoice
	}
	if s.Live.SetupTimeout == 0 {
		s.Live.SetupTimeout = live.DefaultSetupTimeout
	}

	if s.Game.Mode == "" {
		s.Game.Mode = string(game.Speak)
	}
	if s.Game.Level == 0 {
		s.Game.Level = 1
	}

	if s.Capture.FrameSize == 0 {
		s.Capture.FrameSize = capture.DefaultFrameSize
	}
	if s.Capture.VideoInterval == 0 {
		s.Capture.VideoInterval = capture.DefaultVideoInterval
	}
	if s.Capture.VideoScale == 0 {
		s.Capture.VideoScale = capture.DefaultScale
	}
	if s.Capture.JPEGQuality == 0 {
		s.Capture.JPEGQuality = capture.DefaultJPEGQuality
	}

	if s.Playback.OrderPolicy == "" {
		s.Playback.OrderPolicy = playback.OrderCompletion.String()
	}

	if s.Session.SettleDelay == 0 {
		s.Session.SettleDelay = lifecycle.DefaultSettleDelay
	}
	if s.Session.AdvanceDelay == 0 {
		s.Session.AdvanceDelay = lifecycle.DefaultAdvanceDelay
	}

	if s.Results.Prefix == "" {
		s.Results.Prefix = DefaultResultPrefix
	}
	if s.Results.TTL == 0 {
		s.Results.TTL = DefaultResultTTL
	}

	if s.Tracing.ServiceName == "" {
		s.Tracing.ServiceName = DefaultServiceName
	}
	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
	if s.Logging.Format == "" {
		s.Logging.Format = logger.FormatText
	}
}

// Validate checks constraints the schema cannot express.
func (c *LiveGame) Validate() error {
	var errs []error
	s := c.Spec

	if _, err := game.ParseMode(s.Game.Mode); err != nil {
		errs = append(errs, fmt.Errorf("spec.game.mode: %w", err))
	}
	if _, err := playback.ParseOrderPolicy(s.Playback.OrderPolicy); err != nil {
		errs = append(errs, fmt.Errorf("spec.playback.orderPolicy: %w", err))
	}
	durations := []struct {
		field string
		d     time.Duration
	}{
		{"spec.live.setupTimeout", s.Live.SetupTimeout},
		{"spec.live.dialTimeout", s.Live.DialTimeout},
		{"spec.capture.videoInterval", s.Capture.VideoInterval},
		{"spec.session.settleDelay", s.Session.SettleDelay},
		{"spec.session.advanceDelay", s.Session.AdvanceDelay},
		{"spec.results.ttl", s.Results.TTL},
	}
	for _, f := range durations {
		if f.d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", f.field))
		}
	}
	if s.Capture.VideoInterval > 0 && s.Capture.VideoInterval < 50*time.Millisecond {
		errs = append(errs, errors.New("spec.capture.videoInterval must be at least 50ms"))
	}
	return errors.Join(errs...)
}

// Content returns the initial game content. Speak mode without a word gets
// one from the word list; read mode without text gets the default passage.
func (c *LiveGame) Content(pick func(current string) string) (game.Content, error) {
	mode, err := game.ParseMode(c.Spec.Game.Mode)
	if err != nil {
		return game.Content{}, err
	}
	content := game.Content{
		Mode:  mode,
		Level: c.Spec.Game.Level,
		Word:  c.Spec.Game.Word,
		Text:  c.Spec.Game.Text,
	}
	if mode == game.Speak && content.Word == "" && pick != nil {
		content.Word = pick("")
	}
	if mode == game.Read && content.Text == "" {
		content.Text = game.DefaultReadingText
	}
	return content, nil
}

// LiveConfig builds the client configuration with apiKey.
func (c *LiveGame) LiveConfig(apiKey string) live.Config {
	l := c.Spec.Live
	return live.Config{
		Endpoint:     l.Endpoint,
		APIKey:       apiKey,
		Model:        l.Model,
		Voice:        l.Voice,
		SetupTimeout: l.SetupTimeout,
		DialTimeout:  l.DialTimeout,
	}
}

// VideoConfig returns the snapshot settings.
func (c *LiveGame) VideoConfig() capture.VideoConfig {
	return capture.VideoConfig{
		Interval: c.Spec.Capture.VideoInterval,
		Scale:    c.Spec.Capture.VideoScale,
		Quality:  c.Spec.Capture.JPEGQuality,
	}
}

// OrderPolicy returns the parsed playback order.
func (c *LiveGame) OrderPolicy() playback.OrderPolicy {
	p, _ := playback.ParseOrderPolicy(c.Spec.Playback.OrderPolicy)
	return p
}

// LoggingConfig converts the logging block for logger.Configure.
func (c *LiveGame) LoggingConfig() *logger.LoggingConfigSpec {
	return &logger.LoggingConfigSpec{
		Level:        c.Spec.Logging.Level,
		Format:       c.Spec.Logging.Format,
		CommonFields: c.Spec.Logging.CommonFields,
	}
}
