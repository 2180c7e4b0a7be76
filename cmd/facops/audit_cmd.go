package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"facops/internal/audit"
)

// runAudit lists recent audit events, newest first. Unlike every other
// subcommand --env is optional here: without it the listing spans all
// environments.
func runAudit(args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 50, "maximum number of events to show")
	asJSON := fs.Bool("json", false, "emit events as JSON instead of a table")
	fs.Parse(args)

	l, err := audit.Open(auditDBPath())
	if err != nil {
		return configError(err)
	}
	defer l.Close()

	events, err := l.Recent(*common.env, *limit)
	if err != nil {
		return configError(err)
	}
	if *asJSON {
		printJSON(events)
		return exitOK
	}
	if len(events) == 0 {
		fmt.Println("no audit events")
		return exitOK
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tENV\tCOMMAND\tTYPE\tOK\tDETAIL")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Env, e.Command, e.EventType, e.Success, e.Detail)
	}
	w.Flush()
	return exitOK
}
