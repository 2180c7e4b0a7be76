package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"facops/internal/erp"
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	common := addCommonFlags(fs)
	doctype := fs.String("doctype", "", "collection to query")
	name := fs.String("name", "", "document name (fetch by identity)")
	fields := fs.String("fields", "", "comma-separated field list for filter lookups")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	var filters stringList
	fs.Var(&filters, "filter", "field=value equality filter (repeatable)")
	fs.Parse(args)

	logger := common.logger()

	if *doctype == "" {
		return configError(fmt.Errorf("--doctype is required"))
	}
	if *name == "" && len(filters) == 0 {
		return configError(fmt.Errorf("one of --name or --filter is required"))
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

	if *name != "" {
		doc, err := client.GetDocument(ctx, *doctype, *name)
		if err != nil {
			fmt.Printf("FAIL fetch %s/%s: %v\n", *doctype, *name, err)
			return exitItemErrors
		}
		printJSON(doc)
		return exitOK
	}

	f := erp.Filters{}
	for _, pair := range filters {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return configError(fmt.Errorf("invalid --filter %q (want field=value)", pair))
		}
		f[k] = v
	}
	var fieldList []string
	if *fields != "" {
		fieldList = strings.Split(*fields, ",")
	}

	doc, err := client.FindOne(ctx, *doctype, f, fieldList)
	if err != nil {
		fmt.Printf("FAIL lookup %s %v: %v\n", *doctype, f, err)
		return exitItemErrors
	}
	if doc == nil {
		fmt.Println("no match")
		return exitItemErrors
	}
	printJSON(doc)
	return exitOK
}
