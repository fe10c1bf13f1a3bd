package logger

import (
	"fmt"
	"log/slog"
	"sort"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec is the logging block of a manifest, kept here so the
// logger does not import config.
type LoggingConfigSpec struct {
	Level        string
	Format       string
	CommonFields map[string]string
}

// Configure applies cfg to the global logger. A nil cfg changes nothing.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil {
		return nil
	}
	format := cfg.Format
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	keys := make([]string, 0, len(cfg.CommonFields))
	for k := range cfg.CommonFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, slog.String(k, cfg.CommonFields[k]))
	}

	if cfg.Level != "" {
		SetLevel(ParseLevel(cfg.Level))
	}

	mu.Lock()
	defer mu.Unlock()
	logFormat = format
	common = fields
	rebuild()
	return nil
}
