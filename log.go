package hciuart

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

// LogFileConfig enables a rotating log file next to stderr output.
type LogFileConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" default:"20"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" default:"3"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" default:"7"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

var logger Logger
var loggerMu sync.Mutex

// SetLogLevelMax turns on trace output, packet dumps included.
func SetLogLevelMax() {
	if err := SetLogLevel(logrus.TraceLevel.String()); err != nil {
		GetLogger().Error(err)
	}
}

// SetLogLevel parses a logrus level name and applies it to the default logger.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	if lg := rootLogrus("level left unchanged"); lg != nil {
		lg.SetLevel(lvl)
	}
	return nil
}

// SetLogOutput tees the default logger into a lumberjack rotated file.
// An empty path leaves output on stderr only.
func SetLogOutput(cfg LogFileConfig) {
	if cfg.Path == "" {
		return
	}
	lg := rootLogrus("file output not attached")
	if lg == nil {
		return
	}

	lg.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}))
}

// rootLogrus digs the logrus logger out of the global one, or warns with
// what could not be done when a foreign Logger was installed.
func rootLogrus(skipped string) *logrus.Logger {
	l := GetLogger()
	if lg, ok := l.(*defaultLogger); ok {
		return lg.Entry.Logger
	}
	l.Warnf("non-default logger, %s", skipped)
	return nil
}

func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func GetLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		logger = buildDefaultLogger()
	}

	return logger
}

// ComponentLogger returns l, or the global logger when l is nil, tagged with
// the component name.
func ComponentLogger(l Logger, component string) Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.ChildLogger(map[string]interface{}{"component": component})
}

type defaultLogger struct {
	*logrus.Entry
}

func buildDefaultLogger() Logger {
	l := &logrus.Logger{
		Formatter: &logrus.TextFormatter{DisableTimestamp: true},
		Level:     logrus.InfoLevel,
		Out:       os.Stderr,
		Hooks:     make(logrus.LevelHooks),
	}

	return &defaultLogger{Entry: l.WithFields(map[string]interface{}{})}
}

func (d *defaultLogger) ChildLogger(ff map[string]interface{}) Logger {
	nl := &defaultLogger{d.Entry.WithFields(ff)}
	return nl
}

// NewDiscardLogger returns a logger that drops everything. Handy in tests.
func NewDiscardLogger() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &defaultLogger{Entry: logrus.NewEntry(l)}
}
