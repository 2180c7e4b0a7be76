package main

import (
	"context"
	"flag"
	"fmt"
	"time"
)

func runPing(args []string) int {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	common := addCommonFlags(fs)
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	fs.Parse(args)

	logger := common.logger()

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

	start := time.Now()
	if err := client.Initialize(ctx); err != nil {
		fmt.Printf("FAIL initialize: %v\n", err)
		return exitItemErrors
	}
	if err := client.Ping(ctx); err != nil {
		fmt.Printf("FAIL ping: %v\n", err)
		return exitItemErrors
	}
	fmt.Printf("OK %s (%s)\n", env.MCPBaseURL, time.Since(start).Round(time.Millisecond))
	return exitOK
}
