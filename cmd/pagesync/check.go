package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and verify every configured backend",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	failed := false

	if err := rt.service.PingStore(ctx); err != nil {
		failed = true
		fmt.Printf("database: ERROR %v\n", err)
	} else {
		fmt.Println("database: ok")
	}

	if err := rt.service.PingBlob(ctx); err != nil {
		failed = true
		fmt.Printf("object store: ERROR %v\n", err)
	} else {
		fmt.Println("object store: ok")
	}

	if rt.searcher != nil {
		if rt.searcher.Healthy() {
			fmt.Println("search: ok")
		} else {
			fmt.Println("search: unreachable (indexing disabled until it recovers)")
		}
	} else {
		fmt.Println("search: not configured")
	}

	if rt.cursors != nil {
		if err := rt.cursors.Ping(ctx); err != nil {
			failed = true
			fmt.Printf("redis: ERROR %v\n", err)
		} else {
			fmt.Println("redis: ok")
		}
	} else {
		fmt.Println("redis: not configured")
	}

	if rt.cfg.NotionToken == "" {
		fmt.Println("notion: not configured (remote sync disabled)")
	} else {
		fmt.Println("notion: configured")
	}

	if failed {
		return fmt.Errorf("one or more backends failed")
	}
	return nil
}
