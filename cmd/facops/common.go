package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"facops/internal/audit"
	"facops/internal/config"
	"facops/internal/erp"
	"facops/internal/logging"
	"facops/internal/redact"
)

// Exit codes. Guard blocks map to exitConfig except the prod
// double-confirmation, which keeps its own code so wrappers can tell
// "fix your config" apart from "you have not confirmed".
const (
	exitOK         = 0
	exitItemErrors = 1
	exitConfig     = 2
	exitProdBlock  = 3
)

// ackEnvVar is the out-of-band production acknowledgment. Deliberately an
// environment variable: it must be set consciously per shell session, so a
// --confirm-prod flag copy-pasted from an old command is not enough.
const ackEnvVar = "I_UNDERSTAND_PROD"

func prodAck() bool {
	return os.Getenv(ackEnvVar) == "YES"
}

// commonFlags carries the flags every subcommand shares.
type commonFlags struct {
	env       *string
	configDir *string
	logFormat *string
	logLevel  *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		env:       fs.String("env", "", "target environment (dev or prod)"),
		configDir: fs.String("config-dir", config.Dir(), "config directory"),
		logFormat: fs.String("log-format", "text", "log output format: text, json"),
		logLevel:  fs.String("log-level", "info", "log level: debug, info, warn, error"),
	}
}

func (c commonFlags) logger() *slog.Logger {
	return logging.Setup(*c.logFormat, *c.logLevel)
}

func (c commonFlags) requireEnv() (string, error) {
	if *c.env == "" {
		return "", fmt.Errorf("--env is required")
	}
	return *c.env, nil
}

func configError(err error) int {
	fmt.Fprintf(os.Stderr, "CONFIG_ERROR: %v\n", err)
	return exitConfig
}

// loadTarget loads the environment profile and secrets for one invocation.
func loadTarget(c commonFlags, secretsRequired bool) (config.Environment, config.Secrets, error) {
	envID, err := c.requireEnv()
	if err != nil {
		return config.Environment{}, config.Secrets{}, err
	}
	env, err := config.LoadEnvironment(*c.configDir, envID)
	if err != nil {
		return config.Environment{}, config.Secrets{}, err
	}
	secrets, err := config.LoadSecrets(*c.configDir, secretsRequired)
	if err != nil {
		return config.Environment{}, config.Secrets{}, err
	}
	return env, secrets, nil
}

func newClient(env config.Environment, secrets config.Secrets, logger *slog.Logger) (*erp.Client, error) {
	r := redact.NewRedactor()
	r.AddSecrets(secrets.SecretValues())
	return erp.NewClient(env, secrets, erp.WithLogger(logger), erp.WithRedactor(r))
}

func auditDBPath() string {
	return filepath.Join("work", "audit.db")
}

func cacheDBPath(env string) string {
	return filepath.Join("work", env, "cache", "reference_docs.db")
}

// auditLog records one event, best-effort: a broken local audit file must
// never block an operation that the guard already allowed.
func auditLog(logger *slog.Logger, e audit.Event) {
	l, err := audit.Open(auditDBPath())
	if err != nil {
		logger.Warn("audit log unavailable", "error", err)
		return
	}
	defer l.Close()
	if err := l.Log(e); err != nil {
		logger.Warn("audit write failed", "error", err)
	}
}
