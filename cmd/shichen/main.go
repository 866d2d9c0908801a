// ABOUTME: Entry point for the shichen CLI
// ABOUTME: Executes the root command and maps failures to a non-zero exit code

package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
