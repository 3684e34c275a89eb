package main

import (
	"context"
	"fmt"
	"os"

	"github.com/iudanet/statesync/internal/client/cli"
	"github.com/iudanet/statesync/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	root := cli.NewRootCommand(cli.New(iocli.NewStdio()), Version)
	root.SetVersionTemplate(versionText())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionText() string {
	return fmt.Sprintf("Statesync Client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n", Version, BuildDate, GitCommit)
}
