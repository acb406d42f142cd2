package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the questloom version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("questloom", Version)
	},
}
