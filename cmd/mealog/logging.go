package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"mealog/internal/config"
)

const logLevelEnvKey = "MEALOG_LOG_LEVEL"

type levelSource string

const (
	levelFromFlag    levelSource = "flag"
	levelFromEnv     levelSource = "env"
	levelFromConfig  levelSource = "config"
	levelFromDefault levelSource = "default"
)

// configureLoggerForCLI installs the default slog logger. A bad --log-level is an
// error; a bad env or config value falls back to the default level with a warning.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	raw, source := selectedLogLevel(flagLevel, envLevel, configLevel)

	level, err := parseLogLevel(raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}

	var warning string
	switch source {
	case levelFromFlag:
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	case levelFromEnv:
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel)
	case levelFromConfig:
		warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel)
	}
	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(fallback))
	return warning, nil
}

func selectedLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	candidates := []struct {
		value  string
		source levelSource
	}{
		{flagLevel, levelFromFlag},
		{envLevel, levelFromEnv},
		{configLevel, levelFromConfig},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.value) != "" {
			return c.value, c.source
		}
	}
	return "", levelFromDefault
}

// parseLogLevel accepts slog level names, "warning", or a numeric level.
// Empty input yields info.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return slog.LevelInfo, nil
	case strings.EqualFold(value, "warning"):
		return slog.LevelWarn, nil
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
