// Package main is the entry point for the auth service.
//
//	@title			Auth Service API
//	@version		1.0
//	@description	User registration, login and cookie-based sessions.
//	@BasePath		/
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
