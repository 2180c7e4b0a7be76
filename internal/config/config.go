package config

import (
	"fmt"
	"strings"
)

// Environment describes one target ERP environment. Loaded once per
// invocation from config/environments/<env>.yaml and treated as immutable
// for the lifetime of the run.
type Environment struct {
	Env                  string `yaml:"env"`
	Label                string `yaml:"label"`
	Description          string `yaml:"description"`
	SiteURL              string `yaml:"site_url"`
	RESTBaseURL          string `yaml:"rest_base_url"`
	MCPBaseURL           string `yaml:"mcp_base_url"`
	ExpectedHostContains string `yaml:"expected_host_contains"`
	ServerHost           string `yaml:"server_host"`
}

func (e *Environment) Validate(requested string) error {
	type req struct{ key, val string }
	for _, r := range []req{
		{"env", e.Env},
		{"site_url", e.SiteURL},
		{"rest_base_url", e.RESTBaseURL},
		{"mcp_base_url", e.MCPBaseURL},
	} {
		if strings.TrimSpace(r.val) == "" {
			return fmt.Errorf("environment config: missing required field %q", r.key)
		}
	}
	if e.Env != requested {
		return fmt.Errorf("environment config: declared env %q does not match requested %q", e.Env, requested)
	}
	return nil
}

// Secrets holds credential material for one environment. At most one of
// {MCPToken, RESTAPIKey+RESTAPISecret} is used per call; values are never
// logged in full (see redact.Mask).
type Secrets struct {
	RESTAPIKey    string `yaml:"rest_api_key"`
	RESTAPISecret string `yaml:"rest_api_secret"`
	MCPToken      string `yaml:"mcp_token"`
}

// Complete reports whether at least one usable credential form is present:
// a token, or a key/secret pair. A key without a secret does not count.
func (s Secrets) Complete() bool {
	if strings.TrimSpace(s.MCPToken) != "" {
		return true
	}
	return s.RESTAPIKey != "" && s.RESTAPISecret != ""
}

// AuthHeader derives the single Authorization value used for every call.
// A token containing ':' (and no space) is a key:secret pair and uses the
// "token" scheme; any other token is sent as a Bearer token. With no token,
// the REST key/secret pair is used. The raw value is returned separately so
// callers can register it with a Redactor.
func (s Secrets) AuthHeader() (header, scheme, raw string, err error) {
	if t := strings.TrimSpace(s.MCPToken); t != "" {
		if strings.Contains(t, ":") && !strings.Contains(t, " ") {
			return "token " + t, "token", t, nil
		}
		return "Bearer " + t, "Bearer", t, nil
	}
	if s.RESTAPIKey != "" && s.RESTAPISecret != "" {
		raw = s.RESTAPIKey + ":" + s.RESTAPISecret
		return "token " + raw, "token", raw, nil
	}
	return "", "", "", fmt.Errorf("no usable credentials (need mcp_token or rest_api_key/rest_api_secret)")
}

// SecretValues returns every non-empty secret for redactor registration.
func (s Secrets) SecretValues() []string {
	var out []string
	for _, v := range []string{s.RESTAPIKey, s.RESTAPISecret, s.MCPToken} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
