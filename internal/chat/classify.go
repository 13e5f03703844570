// Package chat turns raw game console lines into chat text safe for
// markdown-flavoured chat platforms.
package chat

import (
	"regexp"
	"strings"
)

const (
	// HeaderLen is the width of the "[hh:mm:ss] [thread/LEVEL]: " prefix.
	HeaderLen = 33

	// MinLineLen is the shortest line that can carry a message body.
	MinLineLen = 35

	// FormatMarker starts a game colour/style code.
	FormatMarker = "§"
)

// formatCode matches the marker followed by anything up to and including
// the first digit.
var formatCode = regexp.MustCompile(`§[^0-9]*[0-9]`)

// Classify returns the chat text carried by a console line, or false when
// the line is not chat.
func Classify(raw string) (string, bool) {
	if len(raw) < MinLineLen {
		return "", false
	}
	if raw[0] != '[' {
		return "", false
	}

	body := strings.TrimRight(raw[HeaderLen:], "\r\n")
	if !strings.HasPrefix(body, "<") && !strings.HasPrefix(body, FormatMarker) {
		return "", false
	}
	if strings.TrimSpace(body) == "" {
		return "", false
	}

	body = strings.ReplaceAll(body, "_", `\_`)
	body = formatCode.ReplaceAllString(body, "")
	return body, true
}

// Format prefixes chat text with its session tag and terminates the line.
func Format(session, text string) string {
	return "[" + session + "]" + text + "\n"
}

// FormatLine classifies raw and formats it for session in one step.
func FormatLine(session, raw string) (string, bool) {
	text, ok := Classify(raw)
	if !ok {
		return "", false
	}
	return Format(session, text), true
}
