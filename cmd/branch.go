package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/tmplstore/internal/store"
)

func (a *app) branchCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "branch",
		Short: "List, create, rename or delete branches",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List branches",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			names, err := s.Branches(cmd.Context())
			if err != nil {
				return err
			}
			current := color.New(color.FgGreen)
			out := cmd.OutOrStdout()
			for _, name := range names {
				if name == s.DefaultBranch() {
					current.Fprintf(out, "* %s\n", name)
					continue
				}
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}

	var from string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch from --from, or from the current head",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			if err := s.CreateBranch(cmd.Context(), store.BranchOptions{Name: args[0], From: from}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created branch %s\n", args[0])
			return nil
		},
	}
	create.Flags().StringVar(&from, "from", "", "branch or commit to start from")

	rename := &cobra.Command{
		Use:     "rename <from> <to>",
		Aliases: []string{"mv"},
		Short:   "Rename a branch",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			if err := s.RenameBranch(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed branch %s to %s\n", args[0], args[1])
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a branch",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			if err := s.DeleteBranch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted branch %s\n", args[0])
			return nil
		},
	}

	c.AddCommand(list, create, rename, del)
	return c
}
