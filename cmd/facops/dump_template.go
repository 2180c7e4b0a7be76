package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"facops/internal/profile"
	"facops/internal/template"
)

// runDumpTemplate prints a parameter template's rows in sequence order so
// an operator can see what a profile will ask for without reading the ERP
// UI.
func runDumpTemplate(args []string) int {
	fs := flag.NewFlagSet("dump-template", flag.ExitOnError)
	common := addCommonFlags(fs)
	profileName := fs.String("profile", "", "resolve template from this profile")
	profilesFile := fs.String("profiles-file", "", "profile catalog path (default <config-dir>/item_profiles.json)")
	doctype := fs.String("doctype", "Item Parameter Template", "template collection")
	name := fs.String("name", "", "template document name")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Parse(args)

	logger := common.logger()

	templateDoctype, templateName := *doctype, *name
	if *profileName != "" {
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
		templateDoctype, templateName = prof.TemplateDoctype, prof.TemplateName
	}
	if templateName == "" {
		return configError(fmt.Errorf("one of --profile or --name is required"))
	}

	env, secrets, err := loadTarget(common, true)
	if err != nil {
		return configError(err)
	}
	client, err := newClient(env, secrets, logger)
	if err != nil {
		return configError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	doc, err := client.GetDocument(ctx, templateDoctype, templateName)
	if err != nil {
		fmt.Printf("FAIL fetch %s/%s: %v\n", templateDoctype, templateName, err)
		return exitItemErrors
	}
	params, err := template.ParamsFromDoc(doc)
	if err != nil {
		return configError(fmt.Errorf("template %s: %w", templateName, err))
	}

	fmt.Printf("template: %s/%s\n", templateDoctype, templateName)
	if group, ok := doc["item_group"].(string); ok && group != "" {
		fmt.Printf("item_group: %s\n", group)
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDX\tNAME\tKIND\tDEFAULT\tOPTIONAL\tHASH\tBINDING\tTARGET")
	for _, p := range params {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\t%v\t%v\t%s\n",
			p.Idx, p.Name, p.Kind, p.Default, p.Optional, p.JoinToHash, p.BindingField, p.TargetField)
	}
	w.Flush()
	return exitOK
}
