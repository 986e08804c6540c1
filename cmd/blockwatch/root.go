// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"github.com/spf13/cobra"
)

const (
	appName = "blockwatch"
	version = "0.1.0-dev"

	// tokenEnv holds the admin token for privileged commands when --token
	// is not given.
	tokenEnv = "BLOCKWATCH_ADMIN_TOKEN"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Detect and track ISP DNS blocking",
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newAddCmd(),
		newIgnoreCmd(),
		newListCmd(),
		newResolversCmd(),
		newExportCmd(),
		newHashTokenCmd(),
	)

	return root
}
