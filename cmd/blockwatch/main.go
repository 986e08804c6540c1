// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Command blockwatch detects and tracks ISP DNS blocking.
//
// Configuration is read from BLOCKWATCH_* environment variables. Run
// "blockwatch serve" for the long-running reconciliation and health loops,
// or use the one-shot subcommands to check, add, list, and export domains.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
