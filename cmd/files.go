package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/tmplstore/internal/store"
)

func (a *app) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the selected repository if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			if err := s.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "repository ready at %s (default branch %s)\n", s.Path(), s.DefaultBranch())
			return nil
		},
	}
}

func (a *app) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List folders and files on a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			entries, err := s.Files(cmd.Context(), a.branch)
			if err != nil {
				return err
			}
			folder := color.New(color.FgBlue, color.Bold)
			out := cmd.OutOrStdout()
			for _, e := range entries {
				if e.Type == store.EntryFolder {
					folder.Fprintf(out, "%s/\n", e.Path())
					continue
				}
				fmt.Fprintln(out, e.Path())
			}
			return nil
		},
	}
}

func (a *app) catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			data, err := s.GetFile(cmd.Context(), a.branch, args[0])
			if err != nil {
				return err
			}
			return a.highlight.Document(cmd.OutOrStdout(), args[0], data)
		},
	}
}

func (a *app) putCommand() *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "put <path> [file|-]",
		Short: "Write a document from a file or standard input and commit it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[1:])
			if err != nil {
				return err
			}
			if message == "" {
				message = fmt.Sprintf("Update %s", args[0])
			}
			id, err := a.commit(cmd.Context(), message, func(tx *store.Tx) error {
				return tx.Write(args[0], data)
			})
			if err != nil {
				return err
			}
			printCommitted(cmd, id)
			return nil
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return c
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func (a *app) mkdirCommand() *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder and commit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				message = fmt.Sprintf("Create folder %s", args[0])
			}
			id, err := a.commit(cmd.Context(), message, func(tx *store.Tx) error {
				return tx.Mkdir(args[0])
			})
			if err != nil {
				return err
			}
			printCommitted(cmd, id)
			return nil
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return c
}

func (a *app) rmCommand() *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove documents or folders and commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				message = fmt.Sprintf("Remove %s", args[0])
				if len(args) > 1 {
					message = fmt.Sprintf("Remove %d paths", len(args))
				}
			}
			id, err := a.commit(cmd.Context(), message, func(tx *store.Tx) error {
				for _, p := range args {
					if err := tx.Rm(p); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			printCommitted(cmd, id)
			return nil
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return c
}

func (a *app) mvCommand() *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "mv <src> <dst>",
		Short: "Move or rename a document or folder and commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				message = fmt.Sprintf("Move %s to %s", args[0], args[1])
			}
			id, err := a.commit(cmd.Context(), message, func(tx *store.Tx) error {
				return tx.Mv(args[0], args[1])
			})
			if err != nil {
				return err
			}
			printCommitted(cmd, id)
			return nil
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return c
}
