package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"facops/internal/audit"
	"facops/internal/guard"
	"facops/internal/planner"
	"facops/internal/profile"
	"facops/internal/render"
	"facops/internal/template"
)

// batchRequest is the on-disk request format: either this envelope or a
// bare item array.
type batchRequest struct {
	Profile string         `json:"profile,omitempty"`
	Mode    string         `json:"mode,omitempty"`
	Items   []planner.Item `json:"items"`
}

func runCreateItems(args []string) int {
	fs := flag.NewFlagSet("create-items", flag.ExitOnError)
	common := addCommonFlags(fs)
	profileName := fs.String("profile", "", "item profile name")
	profilesFile := fs.String("profiles-file", "", "profile catalog path (default <config-dir>/item_profiles.json)")
	requestFile := fs.String("request", "", "batch request file (JSON)")
	itemsJSON := fs.String("items-json", "", "inline item array (JSON), alternative to --request")
	mode := fs.String("mode", "", "existence handling: create_only, skip_existing, upsert (default from profile)")
	dryRun := fs.Bool("dry-run", false, "plan only, write nothing remotely")
	confirmProd := fs.Bool("confirm-prod", false, "in-call production confirmation")
	out := fs.String("out", "", "artifact path (default under work/<env>/operations/batches)")
	fs.Parse(args)

	logger := common.logger()

	env, secrets, err := loadTarget(common, true)
	if err != nil {
		return configError(err)
	}

	if *profileName == "" {
		return configError(fmt.Errorf("--profile is required"))
	}
	catalogPath := *profilesFile
	if catalogPath == "" {
		catalogPath = filepath.Join(*common.configDir, "item_profiles.json")
	}
	catalog, err := profile.Load(catalogPath)
	if err != nil {
		return configError(err)
	}
	prof, err := catalog.Get(*profileName)
	if err != nil {
		return configError(err)
	}

	items, req, err := loadItems(*requestFile, *itemsJSON)
	if err != nil {
		return configError(err)
	}
	if len(items) == 0 {
		return configError(fmt.Errorf("batch contains no items"))
	}

	runMode := prof.ModeDefault
	if *mode != "" {
		runMode = *mode
	}
	parsedMode, err := planner.ParseMode(runMode)
	if err != nil {
		return configError(err)
	}

	// A dry run only reads (template document and existence lookups), so
	// the guard gates it at read risk and prod needs no confirmation.
	risk := guard.RiskWrite
	if *dryRun {
		risk = guard.RiskRead
	}
	decision := guard.Evaluate(env, secrets, guard.Operation{Risk: risk, Confirmed: *confirmProd}, prodAck())
	printReport(env, decision)
	auditLog(logger, audit.Event{
		Env:       env.Env,
		Command:   "create-items",
		EventType: "guard",
		Detail:    string(decision.Reason),
		Success:   decision.Allowed,
	})
	if !decision.Allowed {
		if decision.Reason == guard.ReasonProdUnconfirmed {
			return exitProdBlock
		}
		return exitConfig
	}

	client, err := newClient(env, secrets, logger)
	if err != nil {
		return configError(err)
	}

	ctx := context.Background()
	doc, err := client.GetDocument(ctx, prof.TemplateDoctype, prof.TemplateName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: fetch template %s/%s: %v\n", prof.TemplateDoctype, prof.TemplateName, err)
		return exitItemErrors
	}
	params, err := template.ParamsFromDoc(doc)
	if err != nil {
		return configError(fmt.Errorf("template %s: %w", prof.TemplateName, err))
	}
	itemGroup, _ := doc["item_group"].(string)

	r := render.New()
	p := &planner.Planner{
		Profile:   prof,
		Resolver:  template.NewResolver(params, r),
		Render:    r,
		Store:     client,
		ItemGroup: itemGroup,
		Mode:      parsedMode,
		DryRun:    *dryRun,
		Logger:    logger,
	}

	summary, runErr := p.Run(ctx, *profileName, items)

	artifactPath := *out
	if artifactPath == "" {
		artifactPath = planner.DefaultArtifactPath(".", env.Env, *profileName, time.Now().UTC())
	}
	if err := planner.WriteArtifact(artifactPath, req, summary); err != nil {
		logger.Warn("artifact write failed", "path", artifactPath, "error", err)
	} else {
		logger.Info("artifact written", "path", artifactPath)
	}

	auditLog(logger, audit.Event{
		Env:       env.Env,
		Command:   "create-items",
		EventType: "batch",
		Detail: fmt.Sprintf("profile=%s mode=%s dry_run=%v count=%d ok=%d errors=%d",
			*profileName, parsedMode, *dryRun, summary.Count, summary.OK, summary.Errors),
		Success: runErr == nil && summary.Errors == 0,
	})

	printJSON(summary)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: batch aborted: %v\n", runErr)
		return exitItemErrors
	}
	if summary.Errors > 0 {
		return exitItemErrors
	}
	return exitOK
}

// loadItems reads the batch from a request file or inline JSON, accepting
// either the envelope format or a bare item array. It returns the decoded
// items plus the raw request value for the artifact.
func loadItems(requestFile, itemsJSON string) ([]planner.Item, any, error) {
	var data []byte
	switch {
	case requestFile != "" && itemsJSON != "":
		return nil, nil, fmt.Errorf("use --request or --items-json, not both")
	case requestFile != "":
		b, err := os.ReadFile(requestFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read request file: %w", err)
		}
		data = b
	case itemsJSON != "":
		data = []byte(itemsJSON)
	default:
		return nil, nil, fmt.Errorf("one of --request or --items-json is required")
	}

	var items []planner.Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, items, nil
	}
	var req batchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, nil, fmt.Errorf("parse batch request: %w", err)
	}
	return req.Items, req, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
