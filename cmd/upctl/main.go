package main

import (
	"os"

	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/cli"
	"github.com/stackops/upctl/internal/pkg/env"
)

func main() {
	cmd := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr, env.FromOs(), afero.NewOsFs())
	os.Exit(cmd.Execute())
}
