package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrSecretsMissing is returned by LoadSecrets when the local secrets file
// does not exist and credentials were required.
var ErrSecretsMissing = errors.New("missing config/secrets.local.yaml (copy config/secrets.example.yaml and fill it in)")

// Dir resolves the config directory: FACOPS_CONFIG_DIR if set, else
// ./config relative to the working directory.
func Dir() string {
	if d := os.Getenv("FACOPS_CONFIG_DIR"); d != "" {
		return d
	}
	return "config"
}

// LoadEnvironment reads <dir>/environments/<env>.yaml, expands ${VAR}
// references in URL fields, and validates required fields. The file's
// declared env must match the requested one; a mismatch is the classic
// copy-the-wrong-file mistake and is refused outright.
func LoadEnvironment(dir, env string) (Environment, error) {
	path := filepath.Join(dir, "environments", env+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Environment{}, fmt.Errorf("read environment config: %w", err)
	}
	var e Environment
	if err := yaml.Unmarshal(data, &e); err != nil {
		return Environment{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, field := range []*string{&e.SiteURL, &e.RESTBaseURL, &e.MCPBaseURL} {
		*field, err = ExpandEnvStrict(*field)
		if err != nil {
			return Environment{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if e.Label == "" {
		e.Label = env
	}
	if err := e.Validate(env); err != nil {
		return Environment{}, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// LoadSecrets reads <dir>/secrets.local.yaml. A missing file is an error
// only when required (write/migration paths); read paths proceed with
// empty credentials.
func LoadSecrets(dir string, required bool) (Secrets, error) {
	path := filepath.Join(dir, "secrets.local.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if required {
				return Secrets{}, ErrSecretsMissing
			}
			return Secrets{}, nil
		}
		return Secrets{}, fmt.Errorf("read secrets: %w", err)
	}
	var s Secrets
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Secrets{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, field := range []*string{&s.RESTAPIKey, &s.RESTAPISecret, &s.MCPToken} {
		*field, err = ExpandEnvStrict(*field)
		if err != nil {
			return Secrets{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if required && !s.Complete() {
		return s, fmt.Errorf("%s: write operations require mcp_token or rest_api_key/rest_api_secret", path)
	}
	return s, nil
}
