// Package guard implements the preflight gate that protects every write
// path against a script pointed at the wrong environment. It is pure
// decision logic: no network calls, no environment reads. The caller
// supplies the production acknowledgment signal (sourced from wherever it
// likes, typically the I_UNDERSTAND_PROD env var) as an explicit input.
package guard

import (
	"fmt"
	"strings"

	"facops/internal/config"
	"facops/internal/redact"
)

// Risk classifies an operation by blast radius.
type Risk string

const (
	RiskRead      Risk = "read"
	RiskWrite     Risk = "write"
	RiskMigration Risk = "migration"
)

func ParseRisk(s string) (Risk, error) {
	switch Risk(s) {
	case RiskRead, RiskWrite, RiskMigration:
		return Risk(s), nil
	}
	return "", fmt.Errorf("invalid operation risk %q (want read, write or migration)", s)
}

// Mutating reports whether the risk level requires credentials and, on
// prod, double confirmation.
func (r Risk) Mutating() bool {
	return r == RiskWrite || r == RiskMigration
}

// Operation is the request being gated: its risk level and the in-call
// confirmation flag (--confirm-prod on the CLI).
type Operation struct {
	Risk      Risk
	Confirmed bool
}

// Reason identifies which gate blocked a decision.
type Reason string

const (
	ReasonHostMismatch       Reason = "host mismatch"
	ReasonMissingCredentials Reason = "missing credentials"
	ReasonProdUnconfirmed    Reason = "production double-confirmation incomplete"
)

// Check records one gate's result for the report.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Decision is the Guard's verdict plus the full gate-by-gate report.
// Operators rely on seeing every field before proceeding, so the report is
// part of the contract, not a logging side effect.
type Decision struct {
	Allowed bool
	Reason  Reason
	Checks  []Check
	report  []string
}

// Report renders the ordered human-readable report, one line per entry.
func (d Decision) Report() string {
	return strings.Join(d.report, "\n")
}

// prodEnvID is the environment identifier that triggers double
// confirmation for mutating operations.
const prodEnvID = "prod"

// Evaluate runs the gate chain in fixed order: host sanity check,
// credential requirement, production double-confirmation. Every gate is
// evaluated and reported even after an earlier one fails; the decision is
// blocked by the first failing gate. prodAck is the out-of-band
// acknowledgment signal, deliberately separate from op.Confirmed so a
// copy-pasted CLI flag alone can never unlock prod.
func Evaluate(env config.Environment, secrets config.Secrets, op Operation, prodAck bool) Decision {
	d := Decision{Allowed: true}

	d.reportHeader(env, op)

	// Host sanity first: a config pointing at the wrong host is the most
	// dangerous failure mode and must short-circuit everything else.
	if env.ExpectedHostContains != "" {
		ok := strings.Contains(env.SiteURL, env.ExpectedHostContains) &&
			strings.Contains(env.RESTBaseURL, env.ExpectedHostContains)
		d.addCheck(Check{
			Name:   "expected_host",
			OK:     ok,
			Detail: fmt.Sprintf("contains %q in site_url and rest_base_url", env.ExpectedHostContains),
		}, ReasonHostMismatch)
		if !ok {
			d.line("")
			d.line("ERROR: site URLs do not match expected_host_contains; likely wrong environment. Stop now.")
		}
	} else {
		d.addCheck(Check{Name: "expected_host", OK: true, Detail: "no expected_host_contains configured"}, "")
	}

	d.reportCredentials(secrets)
	if op.Risk.Mutating() {
		ok := secrets.Complete()
		d.addCheck(Check{Name: "credentials", OK: ok, Detail: "write/migration requires token or key/secret"}, ReasonMissingCredentials)
		if !ok {
			d.line("ERROR: write/migration operations require credentials in config/secrets.local.yaml.")
		}
	} else {
		d.addCheck(Check{Name: "credentials", OK: true, Detail: "not required for read"}, "")
	}

	if env.Env == prodEnvID && op.Risk.Mutating() {
		ok := prodAck && op.Confirmed
		d.line("")
		d.line("DANGER: high-risk operation against PROD (write/migration).")
		d.line("        Double confirmation required: I_UNDERSTAND_PROD=YES and --confirm-prod")
		d.line(fmt.Sprintf("I_UNDERSTAND_PROD=YES : %s", okOrMissing(prodAck)))
		d.line(fmt.Sprintf("--confirm-prod        : %s", okOrMissing(op.Confirmed)))
		d.addCheck(Check{
			Name:   "prod_double_confirm",
			OK:     ok,
			Detail: fmt.Sprintf("ack=%s flag=%s", okOrMissing(prodAck), okOrMissing(op.Confirmed)),
		}, ReasonProdUnconfirmed)
		if !ok {
			d.line("")
			d.line("BLOCKED: production double-confirmation incomplete; operation refused.")
		}
	} else {
		d.addCheck(Check{Name: "prod_double_confirm", OK: true, Detail: "not applicable"}, "")
	}

	return d
}

func (d *Decision) addCheck(c Check, blockReason Reason) {
	d.Checks = append(d.Checks, c)
	if !c.OK && d.Allowed {
		d.Allowed = false
		d.Reason = blockReason
	}
}

func (d *Decision) line(s string) {
	d.report = append(d.report, s)
}

func (d *Decision) reportHeader(env config.Environment, op Operation) {
	title := fmt.Sprintf("[%s]  ENV=%s   OP=%s", env.Label, env.Env, op.Risk)
	w := len(title) + 8
	if w < 60 {
		w = 60
	}
	bar := strings.Repeat("=", w)
	pad := (w - len(title)) / 2
	d.line(bar)
	d.line(strings.Repeat(" ", pad) + title)
	d.line(bar)
	d.line("")
	d.line("ENV           : " + env.Env)
	d.line("LABEL         : " + env.Label)
	if env.Description != "" {
		d.line("DESCRIPTION   : " + env.Description)
	}
	d.line("SITE_URL      : " + env.SiteURL)
	d.line("REST_BASE_URL : " + env.RESTBaseURL)
	d.line("MCP_BASE_URL  : " + env.MCPBaseURL)
	if env.ServerHost != "" {
		d.line("SERVER_HOST   : " + env.ServerHost)
	}
	if env.ExpectedHostContains != "" {
		d.line(fmt.Sprintf("EXPECTED_HOST : contains %q", env.ExpectedHostContains))
	}
}

func (d *Decision) reportCredentials(secrets config.Secrets) {
	if secrets.RESTAPIKey != "" || secrets.RESTAPISecret != "" {
		d.line("REST_API_KEY  : " + redact.Mask(secrets.RESTAPIKey))
		d.line("REST_API_SEC  : " + redact.Mask(secrets.RESTAPISecret))
	} else {
		d.line("REST_API_KEY  : (empty)")
		d.line("REST_API_SEC  : (empty)")
	}
	if secrets.MCPToken != "" {
		d.line("MCP_TOKEN     : " + redact.Mask(secrets.MCPToken))
	}
}

func okOrMissing(ok bool) string {
	if ok {
		return "OK"
	}
	return "MISSING"
}
