package cmd

import (
	"bytes"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/fatih/color"
)

// highlighter renders document source with terminal escape sequences. A nil
// *highlighter writes text unchanged.
type highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

// newHighlighter returns nil when styleName is empty or colour output is
// off (stdout is not a terminal, or NO_COLOR is set).
func newHighlighter(styleName string) *highlighter {
	if styleName == "" || color.NoColor {
		return nil
	}
	return newHighlighterWithStyle(styleName)
}

func newHighlighterWithStyle(styleName string) *highlighter {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &highlighter{style: style, formatter: formatters.TTY256}
}

func lexerForPath(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// Document writes data, highlighted with the lexer for path. Binary data is
// written as is.
func (h *highlighter) Document(w io.Writer, path string, data []byte) error {
	if h == nil || bytes.IndexByte(data, 0) >= 0 {
		_, err := w.Write(data)
		return err
	}
	out, ok := h.code(lexerForPath(path), string(data))
	if !ok {
		_, err := w.Write(data)
		return err
	}
	_, err := io.WriteString(w, out)
	return err
}

// Line highlights a single line of code. The result carries no newline.
func (h *highlighter) Line(lexer chroma.Lexer, code string) (string, bool) {
	if h == nil || lexer == nil || code == "" {
		return "", false
	}
	out, ok := h.code(lexer, code)
	if !ok {
		return "", false
	}
	// Lexers that ensure a trailing newline add one to a single line.
	return strings.ReplaceAll(out, "\n", ""), true
}

func (h *highlighter) code(lexer chroma.Lexer, code string) (string, bool) {
	if lexer == nil {
		return "", false
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", false
	}
	var buf strings.Builder
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return "", false
	}
	return buf.String(), true
}
