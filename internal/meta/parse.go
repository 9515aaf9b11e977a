package meta

import "strings"

// responseLabels in the order the prompt demands them. Parsing is ordered:
// each section runs from its label to the next label that appears after it,
// so a missing middle section never swallows its neighbors.
var responseLabels = []string{
	"META_INVARIANT",
	"PREDICTED_DOMAIN",
	"PREDICTION",
	"REASONING",
}

// Parsed holds the four extracted sections of a derivation response. A
// section absent from the response is the empty string; the gate pipeline
// turns an empty meta-invariant into a no_meta_invariant rejection.
type Parsed struct {
	MetaInvariant   string
	PredictedDomain string
	Prediction      string
	Reasoning       string
}

// ParseResponse extracts the labeled sections from raw LLM output. It never
// fails: malformed responses simply yield empty sections.
func ParseResponse(raw string) *Parsed {
	sections := make(map[string]string, len(responseLabels))

	for i, label := range responseLabels {
		start := labelIndex(raw, label)
		if start < 0 {
			continue
		}
		start += len(label)
		// Skip the separator after the label (":" and whitespace)
		rest := raw[start:]
		rest = strings.TrimLeft(rest, ": \t\r\n")

		// Cut at the earliest following label
		end := len(rest)
		for _, next := range responseLabels[i+1:] {
			if idx := labelIndex(rest, next); idx >= 0 && idx < end {
				end = idx
			}
		}
		sections[label] = strings.TrimSpace(rest[:end])
	}

	return &Parsed{
		MetaInvariant:   sections["META_INVARIANT"],
		PredictedDomain: sections["PREDICTED_DOMAIN"],
		Prediction:      sections["PREDICTION"],
		Reasoning:       sections["REASONING"],
	}
}

// labelIndex finds a label occurrence that starts a section. Accepts the
// label at the start of the text or after a newline, with optional markdown
// emphasis characters before it.
func labelIndex(s, label string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], label)
		if idx < 0 {
			return -1
		}
		idx += from
		if isSectionStart(s, idx) {
			return idx
		}
		from = idx + len(label)
	}
}

// isSectionStart reports whether position idx begins a line (ignoring
// whitespace and markdown ** or # decoration before the label)
func isSectionStart(s string, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		switch s[i] {
		case '\n':
			return true
		case ' ', '\t', '*', '#', '-':
			continue
		default:
			return false
		}
	}
	return true // start of text
}
