package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"facops/internal/audit"
	"facops/internal/config"
	"facops/internal/guard"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func runPreflight(args []string) int {
	fs := flag.NewFlagSet("preflight", flag.ExitOnError)
	common := addCommonFlags(fs)
	risk := fs.String("risk", "write", "operation risk: read, write, migration")
	confirmProd := fs.Bool("confirm-prod", false, "in-call production confirmation")
	fs.Parse(args)

	logger := common.logger()

	envID, err := common.requireEnv()
	if err != nil {
		return configError(err)
	}
	env, err := config.LoadEnvironment(*common.configDir, envID)
	if err != nil {
		return configError(err)
	}
	// Secrets are optional here: the report must show which credentials
	// are missing rather than dying before the guard runs.
	secrets, err := config.LoadSecrets(*common.configDir, false)
	if err != nil {
		return configError(err)
	}

	r, err := guard.ParseRisk(*risk)
	if err != nil {
		return configError(err)
	}

	decision := guard.Evaluate(env, secrets, guard.Operation{Risk: r, Confirmed: *confirmProd}, prodAck())
	printReport(env, decision)

	auditLog(logger, audit.Event{
		Env:       env.Env,
		Command:   "preflight",
		EventType: "guard",
		Detail:    string(decision.Reason),
		Success:   decision.Allowed,
	})

	switch {
	case decision.Allowed:
		return exitOK
	case decision.Reason == guard.ReasonProdUnconfirmed:
		return exitProdBlock
	default:
		return exitConfig
	}
}

// printReport renders the gate report, in red when the target is prod and
// stdout is an interactive terminal.
func printReport(env config.Environment, d guard.Decision) {
	report := d.Report()
	if env.Env == "prod" && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(ansiRed + report + ansiReset)
		return
	}
	fmt.Println(report)
}
