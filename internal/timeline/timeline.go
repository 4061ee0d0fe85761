// Package timeline reads a signals timeline written as a Markdown journal.
//
// Each ATX heading of level two or deeper opens a day and its text becomes
// the day label. A level-one heading is the journal title: it closes the
// current day and nothing under it is read until the next day heading. Under
// a day heading every list item is one signal; "type: content" sets the
// signal type when the prefix is a single word followed by ": ". Indented lines continue the item
// above. Consecutive plain lines form one "note" signal. Fenced code blocks
// and thematic breaks are skipped, as is anything before the first heading.
package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// DefaultType labels signals written without a type prefix.
const DefaultType = "note"

const maxTypeLen = 20

// ErrNoSignals is returned when a document holds no signal under a heading.
var ErrNoSignals = errors.New("timeline: no signals found")

// LooksLikeMarkdown reports whether data starts like a Markdown journal
// rather than JSON.
func LooksLikeMarkdown(data []byte) bool {
	t := strings.TrimSpace(string(data))
	return t != "" && t[0] != '{' && t[0] != '['
}

// ParseFile reads the journal at path.
func ParseFile(path string) ([]schema.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("timeline: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a journal from r.
func Parse(r io.Reader) ([]schema.Signal, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		signals []schema.Signal
		day     string
		cur     *schema.Signal
		fence   string
	)
	flush := func() {
		if cur != nil && strings.TrimSpace(cur.Content) != "" {
			cur.Content = strings.TrimSpace(cur.Content)
			signals = append(signals, *cur)
		}
		cur = nil
	}
	appendLine := func(text string) {
		if cur.Content == "" {
			cur.Content = text
		} else {
			cur.Content += " " + text
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if fence != "" {
			if isClosingFence(line, fence) {
				fence = ""
			}
			continue
		}
		if fp := fencePrefix(line); fp != "" {
			flush()
			fence = fp
			continue
		}

		switch {
		case headingLevel(line) == 1:
			flush()
			day = ""
		case headingLevel(line) > 1:
			flush()
			day = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		case day == "":
			// Preamble before the first day.
		case strings.TrimSpace(line) == "", isThematicBreak(line):
			flush()
		case isListItem(line) && !isIndented(line):
			flush()
			typ, content := splitType(stripListPrefix(line))
			cur = &schema.Signal{Day: day, Type: typ, Content: content}
		case cur != nil:
			appendLine(strings.TrimSpace(line))
		default:
			cur = &schema.Signal{Day: day, Type: DefaultType, Content: strings.TrimSpace(line)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("timeline: scan: %w", err)
	}
	flush()

	if len(signals) == 0 {
		return nil, ErrNoSignals
	}
	return signals, nil
}

// splitType separates a "type: content" prefix. The prefix must be one word
// and the colon must be followed by whitespace, so "https://..." stays whole.
func splitType(s string) (typ, content string) {
	i := strings.Index(s, ":")
	if i <= 0 || i > maxTypeLen || i+1 >= len(s) || (s[i+1] != ' ' && s[i+1] != '\t') {
		return DefaultType, s
	}
	word := s[:i]
	for _, r := range word {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' || r == '-') {
			return DefaultType, s
		}
	}
	rest := strings.TrimSpace(s[i+1:])
	if rest == "" {
		return DefaultType, s
	}
	return strings.ToLower(word), rest
}

// fencePrefix returns the opening fence ("```", "~~~~", ...) when line opens
// a fenced code block. Four or more leading spaces make an indented code
// block instead.
func fencePrefix(line string) string {
	leading := countLeadingSpaces(line)
	if leading >= 4 {
		return ""
	}
	stripped := line[leading:]
	for _, marker := range []byte{'`', '~'} {
		if len(stripped) < 3 || stripped[0] != marker {
			continue
		}
		n := 0
		for n < len(stripped) && stripped[n] == marker {
			n++
		}
		if n >= 3 {
			return stripped[:n]
		}
	}
	return ""
}

// isClosingFence requires the same marker, at least the opening length and
// nothing but spaces after it.
func isClosingFence(line, open string) bool {
	fp := fencePrefix(line)
	if fp == "" || fp[0] != open[0] || len(fp) < len(open) {
		return false
	}
	rest := line[countLeadingSpaces(line)+len(fp):]
	return strings.TrimLeft(rest, " ") == ""
}

func countLeadingSpaces(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

// headingLevel returns the level of an ATX heading ("#" through "######"
// followed by a space) or 0 when line is not one.
func headingLevel(line string) int {
	if countLeadingSpaces(line) >= 4 {
		return 0
	}
	t := strings.TrimSpace(line)
	hashes := strings.IndexFunc(t, func(r rune) bool { return r != '#' })
	if hashes > 0 && hashes <= 6 && t[hashes] == ' ' {
		return hashes
	}
	return 0
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

func isListItem(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || strings.HasPrefix(t, "+ ") || strings.HasPrefix(t, "• ") {
		return true
	}
	for j := 0; j < len(t); j++ {
		ch := t[j]
		if ch >= '0' && ch <= '9' {
			continue
		}
		return (ch == '.' || ch == ')') && j > 0 && j+1 < len(t) && t[j+1] == ' '
	}
	return false
}

func stripListPrefix(line string) string {
	t := strings.TrimSpace(line)
	for _, pfx := range []string{"- ", "* ", "+ ", "• "} {
		if strings.HasPrefix(t, pfx) {
			return strings.TrimSpace(t[len(pfx):])
		}
	}
	for j := 0; j < len(t); j++ {
		ch := t[j]
		if ch >= '0' && ch <= '9' {
			continue
		}
		if (ch == '.' || ch == ')') && j > 0 && j+1 < len(t) && t[j+1] == ' ' {
			return strings.TrimSpace(t[j+1:])
		}
		break
	}
	return t
}

// isThematicBreak matches lines of three or more '-', '*' or '_'.
func isThematicBreak(line string) bool {
	t := strings.ReplaceAll(strings.TrimSpace(line), " ", "")
	if len(t) < 3 {
		return false
	}
	c := t[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	return strings.Count(t, string(c)) == len(t)
}

// Decode reads data as a Markdown journal when it does not look like JSON and
// as a JSON analyze request otherwise.
func Decode(data []byte) (schema.AnalyzeRequest, error) {
	if !LooksLikeMarkdown(data) {
		return schema.DecodeAnalyzeRequest(data)
	}
	signals, err := Parse(strings.NewReader(string(data)))
	if err != nil {
		return schema.AnalyzeRequest{}, err
	}
	return schema.AnalyzeRequest{Signals: signals}, nil
}
