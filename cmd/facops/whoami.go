package main

import (
	"context"
	"flag"
	"fmt"
	"time"
)

func runWhoami(args []string) int {
	fs := flag.NewFlagSet("whoami", flag.ExitOnError)
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

	if err := client.Initialize(ctx); err != nil {
		fmt.Printf("FAIL initialize: %v\n", err)
		return exitItemErrors
	}
	result, err := client.Invoke(ctx, "get_user_info", nil)
	if err != nil {
		fmt.Printf("FAIL get_user_info: %v\n", err)
		return exitItemErrors
	}
	printJSON(result)
	return exitOK
}
