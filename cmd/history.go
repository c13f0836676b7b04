package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thiagokokada/tmplstore/internal/store"
)

func (a *app) logCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "log [path]",
		Short: "Show the commits of a branch, or of one document across renames",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			opts := store.LogOptions{Ref: a.branch}
			if len(args) == 1 {
				opts.Path = args[0]
			}
			commits, err := s.Log(cmd.Context(), opts)
			if err != nil {
				return err
			}
			id := color.New(color.FgYellow)
			out := cmd.OutOrStdout()
			for _, c := range commits {
				id.Fprintf(out, "%s", shortID(c.ID))
				fmt.Fprintf(out, " %s  %s <%s>  %s\n",
					c.Author.When.Format(time.DateTime),
					c.Author.Name,
					c.Author.Email,
					firstLine(c.Message),
				)
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func (a *app) diffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <from> <to> <path>",
		Short: "Show a unified diff of one document between two refs",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			diff, err := s.Diff(cmd.Context(), store.DiffOptions{From: args[0], To: args[1], Path: args[2]})
			if err != nil {
				return err
			}
			printColoredDiff(cmd.OutOrStdout(), diff, a.highlight)
			return nil
		},
	}
}

func printColoredDiff(w io.Writer, diff string, h *highlighter) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	header := color.New(color.FgCyan)
	file := color.New(color.Bold)

	var lexer chroma.Lexer
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++ "), strings.HasPrefix(line, "--- "):
			if path, ok := diffPathFromHeader(line); ok {
				lexer = lexerForPath(path)
			}
			file.Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			header.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			printDiffLine(w, added, line, lexer, h)
		case strings.HasPrefix(line, "-"):
			printDiffLine(w, removed, line, lexer, h)
		case strings.HasPrefix(line, " "):
			printDiffLine(w, nil, line, lexer, h)
		default:
			fmt.Fprint(w, line)
		}
	}
}

// printDiffLine colours the +/- marker with marker and highlights the code
// after it. Without highlighting the whole line takes the marker colour.
func printDiffLine(w io.Writer, marker *color.Color, line string, lexer chroma.Lexer, h *highlighter) {
	body, eol := strings.CutSuffix(line, "\n")
	code, ok := h.Line(lexer, body[1:])
	if !ok {
		if marker == nil {
			fmt.Fprint(w, line)
			return
		}
		marker.Fprint(w, line)
		return
	}
	if marker == nil {
		fmt.Fprint(w, body[:1])
	} else {
		marker.Fprint(w, body[:1])
	}
	fmt.Fprint(w, code)
	if eol {
		fmt.Fprint(w, "\n")
	}
}

// diffPathFromHeader returns the document path of a "--- a/x" or "+++ b/x"
// header. A /dev/null side has no path.
func diffPathFromHeader(line string) (string, bool) {
	name := strings.TrimSpace(line[min(len(line), 4):])
	if name == "" || name == "/dev/null" {
		return "", false
	}
	if before, _, ok := strings.Cut(name, "\t"); ok {
		name = before
	}
	for _, prefix := range []string{"a/", "b/"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok {
			return rest, true
		}
	}
	return name, true
}

func (a *app) findCommand() *cobra.Command {
	var strict bool
	c := &cobra.Command{
		Use:   "find <name>",
		Short: "Resolve a document by path, file name or name without extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			found, err := s.FindFile(cmd.Context(), args[0], store.FindOptions{Ref: a.branch, RejectIfNotFound: strict})
			if err != nil {
				return err
			}
			if found == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "no document matches %q\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), found)
			return nil
		},
	}
	c.Flags().BoolVar(&strict, "strict", false, "fail when nothing matches")
	return c
}
