package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var buildInfo = struct {
	version string
	commit  string
	date    string
}{version: "dev"}

func setBuildInfo(version, commit, date string) {
	if version != "" {
		buildInfo.version = version
	}
	buildInfo.commit = commit
	buildInfo.date = date
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			color.Green("sd-helper %s", buildInfo.version)
			if buildInfo.commit != "" {
				fmt.Printf("commit: %s\n", buildInfo.commit)
			}
			if buildInfo.date != "" {
				fmt.Printf("built:  %s\n", buildInfo.date)
			}
		},
	}
}
