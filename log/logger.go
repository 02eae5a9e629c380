package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// FormatType selects the log line encoding.
type FormatType int

const (
	FormatTypeText FormatType = iota
	FormatTypeJson
)

var formatTypeNames = map[FormatType]string{
	FormatTypeText: "text",
	FormatTypeJson: "json",
}

func (f FormatType) String() string {
	return formatTypeNames[f]
}

// ParseFormatType parses the text form of a FormatType, case-insensitively.
func ParseFormatType(s string) (FormatType, error) {
	for t, name := range formatTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}

	return 0, fmt.Errorf("log: unknown format %q", s)
}

// UnmarshalYAML implements `yaml.Unmarshaler`.
func (f *FormatType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	t, err := ParseFormatType(s)
	if err != nil {
		return err
	}

	*f = t

	return nil
}

// Level is the logging verbosity threshold.
type Level int

const (
	LevelInfo Level = iota
	LevelTrace
	LevelDebug
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelInfo:  "info",
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
}

func (l Level) String() string {
	return levelNames[l]
}

// ParseLevel parses the text form of a Level, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(name, s) {
			return l, nil
		}
	}

	return 0, fmt.Errorf("log: unknown level %q", s)
}

// UnmarshalYAML implements `yaml.Unmarshaler`.
func (l *Level) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}

	*l = lvl

	return nil
}

type Config struct {
	Level     Level      `yaml:"level" default:"info"`
	Format    FormatType `yaml:"format" default:"text"`
	Privacy   bool       `yaml:"privacy" default:"false"`
	Timestamp bool       `yaml:"timestamp" default:"true"`
	Hostname  bool       `yaml:"hostname" default:"false"`
}

// Logger is the global logging instance
// nolint:gochecknoglobals
var logger *logrus.Logger

// nolint:gochecknoinits
func init() {
	logger = logrus.New()

	lc := Config{
		Level:     LevelInfo,
		Format:    FormatTypeText,
		Timestamp: true,
	}

	ConfigureLogger(lc)
}

// Log returns the global logger
func Log() *logrus.Logger {
	return logger
}

// PrefixedLog return the global logger with prefix
func PrefixedLog(prefix string) *logrus.Entry {
	return logger.WithField("prefix", prefix)
}

// EscapeInput removes line breaks from input
func EscapeInput(input string) string {
	result := strings.ReplaceAll(input, "\n", "")
	result = strings.ReplaceAll(result, "\r", "")

	return result
}

// ConfigureLogger applies configuration to the global logger
func ConfigureLogger(lc Config) {
	if level, err := logrus.ParseLevel(lc.Level.String()); err != nil {
		logger.Fatalf("invalid log level %s %v", lc.Level, err)
	} else {
		logger.SetLevel(level)
	}

	var baseFormatter logrus.Formatter

	switch lc.Format {
	case FormatTypeText:
		logFormatter := &prefixed.TextFormatter{
			TimestampFormat:  "2006-01-02 15:04:05",
			FullTimestamp:    true,
			ForceFormatting:  true,
			ForceColors:      false,
			QuoteEmptyFields: true,
			DisableTimestamp: !lc.Timestamp,
		}

		logFormatter.SetColorScheme(&prefixed.ColorScheme{
			PrefixStyle:    "blue+b",
			TimestampStyle: "white+h",
		})

		baseFormatter = logFormatter

	case FormatTypeJson:
		baseFormatter = &logrus.JSONFormatter{}
	}

	var newFormatter logrus.Formatter

	if hn, err := getHostname(hostnameFilePath); err == nil && lc.Hostname {
		newFormatter = hostnameFormatter{
			hostname:  hn,
			formatter: baseFormatter,
		}
	} else {
		newFormatter = baseFormatter
	}

	logger.SetFormatter(newFormatter)
}

// Silence disables the logger output
func Silence() {
	logger.Out = io.Discard
}

type hostnameFormatter struct {
	hostname  string
	formatter logrus.Formatter
}

func (l hostnameFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	newentry := *entry
	newentry.Data["hostname"] = l.hostname

	return l.formatter.Format(&newentry)
}

// hostnameFilePath is read for the log "hostname" field when Config.Hostname
// is set; overridable by tests via getHostname's argument.
const hostnameFilePath = "/etc/hostname"

func getHostname(path string) (string, error) {
	if path != "" {
		if hn, err := os.ReadFile(path); err == nil {
			return strings.ToLower(strings.TrimSpace(string(hn))), nil
		}
	}

	if hn, err := os.Hostname(); err == nil {
		return hn, nil
	}

	return "", errors.New("hostname couldn't be determined")
}
