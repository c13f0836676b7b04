package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thiagokokada/tmplstore/internal/buildinfo"
	"github.com/thiagokokada/tmplstore/internal/git/backend"
)

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tmplstore %s\n", buildinfo.Read())
			if v, err := backend.GitVersion(); err == nil {
				fmt.Fprintf(out, "%s (gitcli backend needs %s or newer)\n", strings.TrimSpace(v), backend.MinGitVersion())
			}
		},
	}
}
