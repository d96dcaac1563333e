package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with context-aware methods
type Logger interface {
	// Component returns a logger for a specific component
	Component(name string) Logger
	// With returns a logger with additional attributes
	With(args ...any) Logger

	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds output configuration
type Config struct {
	JSONMode bool
	// LogLevel overrides the LOG_LEVEL environment variable when set.
	LogLevel string
	// LogFile is where interactive mode writes structured logs. Defaults to ~/.gearsync/gearsync.log.
	LogFile string
	// Stdout receives JSON logs and JSON documents. Defaults to os.Stdout.
	Stdout io.Writer
}

// OutputLogger handles both user output and structured logging
type OutputLogger struct {
	Logger
	jsonMode bool
	stdout   io.Writer
	closer   io.Closer
	mu       sync.Mutex
}

// GearState is the resolution state shown on a gear line.
type GearState int

const (
	GearCached GearState = iota
	GearFetched
	GearFailed
)

// GearLineInfo describes one resolved (or failed) gear identifier.
type GearLineInfo struct {
	Index    int
	Total    int
	ID       string
	Name     string
	State    GearState
	Km       float64
	Miles    float64
	ErrorMsg string
}

// New creates a new OutputLogger.
// In JSON mode structured logs go to stdout; otherwise they go to a rotated log
// file and user messages use pterm.
func New(cfg Config) (*OutputLogger, error) {
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	level := parseLogLevel(cfg.LogLevel)

	var (
		slogLogger *slog.Logger
		closer     io.Closer
	)
	if cfg.JSONMode {
		handler := slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})
		slogLogger = slog.New(handler)
	} else {
		logFile := cfg.LogFile
		if logFile == "" {
			var err error
			logFile, err = getLogFilePath()
			if err != nil {
				return nil, fmt.Errorf("failed to get log file path: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		closer = rotator
		slogLogger = slog.New(slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: level}))
	}

	return &OutputLogger{
		Logger:   &loggerImpl{slog: slogLogger},
		jsonMode: cfg.JSONMode,
		stdout:   stdout,
		closer:   closer,
	}, nil
}

// Close flushes and closes the log file, if any.
func (ol *OutputLogger) Close() error {
	if ol.closer == nil {
		return nil
	}
	return ol.closer.Close()
}

// JSONMode reports whether output is structured JSON.
func (ol *OutputLogger) JSONMode() bool {
	return ol.jsonMode
}

// parseLogLevel maps a level name to slog, falling back to LOG_LEVEL and then info.
func parseLogLevel(level string) slog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	switch strings.ToLower(level) {
	case "trace":
		return slog.LevelDebug - 4 // Trace is lower than debug
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getLogFilePath returns the path to the log file
func getLogFilePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gearsync", "gearsync.log"), nil
}

// Section prints a heading between phases of a run.
func (ol *OutputLogger) Section(title string) {
	if ol.jsonMode {
		ol.Logger.Info("section", "title", title)
		return
	}
	pterm.Println()
	pterm.DefaultSection.Println(title)
}

// PageLine reports one processed activity listing page.
func (ol *OutputLogger) PageLine(page, activities, newActivities int) {
	if ol.jsonMode {
		ol.Logger.Info("activity_page",
			"page", page,
			"activities", activities,
			"new", newActivities)
		return
	}
	line := fmt.Sprintf("Page %d: %d activities", page, activities)
	if newActivities > 0 {
		line += pterm.NewStyle(pterm.FgGreen).Sprintf(" (%d new)", newActivities)
	} else {
		line += pterm.NewStyle(pterm.FgGray).Sprint(" (all cached)")
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()
	pterm.Println(line)
}

// GearLine reports the outcome for one gear identifier. Safe for concurrent use.
func (ol *OutputLogger) GearLine(info GearLineInfo) {
	if ol.jsonMode {
		ol.Logger.Info("gear_status",
			"gear_id", info.ID,
			"name", info.Name,
			"state", info.State.String(),
			"km", info.Km,
			"miles", info.Miles,
			"error", info.ErrorMsg)
		return
	}
	ol.mu.Lock()
	defer ol.mu.Unlock()
	pterm.Println(buildGearLine(info))
}

func buildGearLine(info GearLineInfo) string {
	prefix := fmt.Sprintf("[%d/%d] %s", info.Index, info.Total, info.ID)
	switch info.State {
	case GearCached:
		return fmt.Sprintf("%s %s %s - %.2f miles (%.2f km)", prefix,
			pterm.NewStyle(pterm.BgGray, pterm.FgBlack).Sprint("CACHED"), info.Name, info.Miles, info.Km)
	case GearFetched:
		return fmt.Sprintf("%s %s %s - %.2f miles (%.2f km)", prefix,
			pterm.NewStyle(pterm.BgGreen, pterm.FgWhite).Sprint("FETCHED"), info.Name, info.Miles, info.Km)
	default:
		return fmt.Sprintf("%s %s %s", prefix,
			pterm.NewStyle(pterm.BgRed, pterm.FgWhite).Sprint("FAILED"),
			pterm.NewStyle(pterm.FgRed).Sprint(info.ErrorMsg))
	}
}

func (s GearState) String() string {
	switch s {
	case GearCached:
		return "cached"
	case GearFetched:
		return "fetched"
	default:
		return "failed"
	}
}

// Table renders rows with the first row as header. Ignored in JSON mode.
func (ol *OutputLogger) Table(rows [][]string) error {
	if ol.jsonMode {
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// Confirm asks a yes/no question. In JSON mode there is nobody to ask, so it returns false.
func (ol *OutputLogger) Confirm(question string) (bool, error) {
	if ol.jsonMode {
		return false, nil
	}
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(false).Show(question)
}

// Progress shows ongoing operations
func (ol *OutputLogger) Progress(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("progress", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Info.Printf(format+"\n", args...)
	}
}

// Status shows important state changes
func (ol *OutputLogger) Status(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("status", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Success.Printf(format+"\n", args...)
	}
}

// Warning shows a non-fatal problem
func (ol *OutputLogger) Warning(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Warn("user_warning", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Warning.Printf(format+"\n", args...)
	}
}

// Result shows final results/summaries
func (ol *OutputLogger) Result(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("result", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Success.Printf("🎯 "+format+"\n", args...)
	}
}

// Error shows user-facing errors
func (ol *OutputLogger) Error(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Error("user_error", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Error.Printf(format+"\n", args...)
	}
}

// JSON outputs structured data (only in JSON mode)
func (ol *OutputLogger) JSON(data any) error {
	if !ol.jsonMode {
		return nil
	}
	return json.NewEncoder(ol.stdout).Encode(data)
}

// LogAndShowError logs an error with full context and shows a user-friendly message
func (ol *OutputLogger) LogAndShowError(err error, userMsg string, args ...any) {
	ol.Logger.Error("operation_failed", "error", err.Error(), "user_message", fmt.Sprintf(userMsg, args...))
	ol.Error(userMsg, args...)
}

// loggerImpl implements Logger interface
type loggerImpl struct {
	slog *slog.Logger
}

func (l *loggerImpl) Component(name string) Logger {
	return &loggerImpl{slog: l.slog.With("component", name)}
}

func (l *loggerImpl) With(args ...any) Logger {
	return &loggerImpl{slog: l.slog.With(args...)}
}

func (l *loggerImpl) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *loggerImpl) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *loggerImpl) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *loggerImpl) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}
