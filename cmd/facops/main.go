package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func usage() {
	fmt.Fprintf(os.Stderr, "facops v%s\n", version)
	fmt.Fprintf(os.Stderr, "Environment-safe ERP item automation (preflight gate + templated item batches)\n\n")
	fmt.Fprintf(os.Stderr, "Usage: facops <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  preflight       Check an environment and print the full gate report\n")
	fmt.Fprintf(os.Stderr, "  create-items    Create/update catalog items from a parameter template\n")
	fmt.Fprintf(os.Stderr, "  ping            MCP initialize + ping round-trip\n")
	fmt.Fprintf(os.Stderr, "  whoami          Show the identity behind the configured credentials\n")
	fmt.Fprintf(os.Stderr, "  rest-smoke      REST connectivity and auth check\n")
	fmt.Fprintf(os.Stderr, "  inspect         Fetch one document and print it as JSON\n")
	fmt.Fprintf(os.Stderr, "  dump-template   Print a parameter template's rows\n")
	fmt.Fprintf(os.Stderr, "  cache           Reference-document cache (status, refresh)\n")
	fmt.Fprintf(os.Stderr, "  audit           List recent audit events\n\n")
	fmt.Fprintf(os.Stderr, "Every command takes --env dev|prod. Write paths additionally require\n")
	fmt.Fprintf(os.Stderr, "credentials in config/secrets.local.yaml and, against prod, the double\n")
	fmt.Fprintf(os.Stderr, "confirmation I_UNDERSTAND_PROD=YES plus --confirm-prod.\n\n")
	fmt.Fprintf(os.Stderr, "Run 'facops <command> -h' for command flags.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfig)
	}
	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "preflight":
		os.Exit(runPreflight(args))
	case "create-items":
		os.Exit(runCreateItems(args))
	case "ping":
		os.Exit(runPing(args))
	case "whoami":
		os.Exit(runWhoami(args))
	case "rest-smoke":
		os.Exit(runRestSmoke(args))
	case "inspect":
		os.Exit(runInspect(args))
	case "dump-template":
		os.Exit(runDumpTemplate(args))
	case "cache":
		os.Exit(runCache(args))
	case "audit":
		os.Exit(runAudit(args))
	case "version", "-v", "--version":
		fmt.Printf("facops v%s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(exitConfig)
	}
}
