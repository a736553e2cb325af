package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment overrides, applied after config.yaml is read.
const (
	EnvHome        = "KATA_HOME"
	EnvLLMProvider = "KATA_LLM_PROVIDER"
	EnvLogLevel    = "KATA_LOG_LEVEL"
	EnvAMQPURL     = "KATA_AMQP_URL"
	EnvPostgresDSN = "KATA_POSTGRES_DSN"
	EnvExecutor    = "KATA_EXECUTOR"
	EnvDaemonPort  = "KATA_PORT"
)

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *LocalConfig) {
	cfg.LLM.DefaultProvider = getEnv(EnvLLMProvider, cfg.LLM.DefaultProvider)
	cfg.Daemon.LogLevel = strings.ToLower(getEnv(EnvLogLevel, cfg.Daemon.LogLevel))
	cfg.Daemon.Port = getEnvInt(EnvDaemonPort, cfg.Daemon.Port)
	cfg.Telemetry.AMQPURL = getEnv(EnvAMQPURL, cfg.Telemetry.AMQPURL)
	cfg.Telemetry.PostgresDSN = getEnv(EnvPostgresDSN, cfg.Telemetry.PostgresDSN)
	cfg.Runner.Executor = getEnv(EnvExecutor, cfg.Runner.Executor)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
