package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the branch list whenever the repository changes, until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "watching %s\n", s.Path())
			return s.Watch(ctx, func() {
				names, err := s.Branches(ctx)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "list branches: %v\n", err)
					return
				}
				fmt.Fprintf(out, "%s changed: %s\n", time.Now().Format(time.TimeOnly), strings.Join(names, ", "))
			})
		},
	}
}
