package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"facops/internal/cache"
)

// runCache manages the per-environment reference-document cache: local
// snapshots of remote documents (templates, item groups, units) used when
// drafting batch requests offline.
func runCache(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: facops cache <status|refresh> [flags]")
		return exitConfig
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "status":
		return runCacheStatus(rest)
	case "refresh":
		return runCacheRefresh(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown cache subcommand %q (want status or refresh)\n", sub)
		return exitConfig
	}
}

func runCacheStatus(args []string) int {
	fs := flag.NewFlagSet("cache status", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	envID, err := common.requireEnv()
	if err != nil {
		return configError(err)
	}

	store, err := cache.Open(cacheDBPath(envID))
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	entries, err := store.Status()
	if err != nil {
		return configError(err)
	}
	if len(entries) == 0 {
		fmt.Println("cache is empty")
		return exitOK
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCTYPE\tNAME\tAGE\tFETCHED_AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Doctype, e.Name, e.Age().Round(time.Second), e.FetchedAt.Format(time.RFC3339))
	}
	w.Flush()
	return exitOK
}

func runCacheRefresh(args []string) int {
	fs := flag.NewFlagSet("cache refresh", flag.ExitOnError)
	common := addCommonFlags(fs)
	doctype := fs.String("doctype", "", "collection of the document to snapshot")
	name := fs.String("name", "", "document name to snapshot")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	fs.Parse(args)

	logger := common.logger()

	if *doctype == "" || *name == "" {
		return configError(fmt.Errorf("--doctype and --name are required"))
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

	doc, err := client.GetDocument(ctx, *doctype, *name)
	if err != nil {
		fmt.Printf("FAIL fetch %s/%s: %v\n", *doctype, *name, err)
		return exitItemErrors
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return configError(fmt.Errorf("encode document: %w", err))
	}

	store, err := cache.Open(cacheDBPath(env.Env))
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	if err := store.Put(*doctype, *name, payload); err != nil {
		return configError(err)
	}
	fmt.Printf("cached %s/%s (%d bytes)\n", *doctype, *name, len(payload))
	return exitOK
}
