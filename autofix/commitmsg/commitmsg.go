// Package commitmsg generates and parses bumped-pin lists embedded in git
// commit messages. Pins are encoded between marker lines so that the runner
// package can detect whether an existing bump branch already carries the same
// set of bumps.
package commitmsg

import (
	"log/slog"
	"strings"
)

const (
	begin = "--- bumped pins begin ---"
	end   = "--- bumped pins end ---"
)

// ExtractPins extracts the list of bumped pins from a commit
// message delimited by begin/end markers. Each pin is one
// "name==version" line.
func ExtractPins(msg string) []string {
	var pins []string

	betweenMarkers := false

	for _, line := range strings.Split(msg, "\n") {
		switch line {
		case begin:
			betweenMarkers = true
		case end:
			betweenMarkers = false
		default:
			if betweenMarkers {
				pins = append(pins, line)
			}
		}
	}

	if betweenMarkers {
		slog.Warn(
			"unable to find end marker in commit message",
		)

		return nil
	}

	return pins
}

// Generate produces a commit message consisting of subject
// followed by the given pins between begin/end markers.
func Generate(subject string, pins []string) string {
	var sb strings.Builder

	sb.WriteString(subject)
	sb.WriteByte('\n')
	sb.WriteByte('\n')
	sb.WriteString(begin)
	sb.WriteByte('\n')

	for _, p := range pins {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}

	sb.WriteString(end)
	sb.WriteByte('\n')

	return sb.String()
}
