package handlers

import (
	"context"
	"fmt"
	"sort"

	"sentinel/internal/events"
)

// PrivacyHandler scans log.line bodies for PII and publishes a sanitized
// copy alongside the findings. It never mutates or republishes the original
// log stream (spec.md §4.4.5).
type PrivacyHandler struct{}

// NewPrivacyHandler constructs a PrivacyHandler.
func NewPrivacyHandler() *PrivacyHandler { return &PrivacyHandler{} }

type piiMatch struct {
	kind  string
	start int
	end   int
	repl  string
}

// Handle implements Func.
func (h *PrivacyHandler) Handle(ctx context.Context, evt events.Event) ([]events.Event, error) {
	line, ok := evt.Payload.(events.LogLine)
	if !ok {
		return nil, fmt.Errorf("privacy handler: unexpected payload type %T", evt.Payload)
	}

	matches := findPII(line.Body)
	if len(matches) == 0 {
		return nil, nil
	}

	findings := make([]events.PIIFinding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, events.PIIFinding{Kind: m.kind, Start: m.start, End: m.end})
	}

	payload := events.PrivacyViolation{
		SourceComponent: line.SourceComponent,
		Findings:        findings,
		SanitizedLine:   sanitize(line.Body, matches),
	}
	out, err := events.New(events.TopicPrivacyViolation, evt.CorrelationID, "privacy_handler", payload)
	if err != nil {
		return nil, err
	}
	return []events.Event{out}, nil
}

// findPII scans body against the fixed pattern set, keeping the
// earliest-starting, longest non-overlapping match per span so a 9-digit
// TFN inside a longer card-number run is not double-counted.
func findPII(body string) []piiMatch {
	var all []piiMatch
	for _, p := range piiPatterns {
		for _, loc := range p.re.FindAllStringIndex(body, -1) {
			all = append(all, piiMatch{kind: p.kind, start: loc[0], end: loc[1], repl: p.placeholder})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end > all[j].end
	})

	var kept []piiMatch
	lastEnd := -1
	for _, m := range all {
		if m.start < lastEnd {
			continue
		}
		kept = append(kept, m)
		lastEnd = m.end
	}
	return kept
}

func sanitize(body string, matches []piiMatch) string {
	var out []byte
	cursor := 0
	for _, m := range matches {
		out = append(out, body[cursor:m.start]...)
		out = append(out, m.repl...)
		cursor = m.end
	}
	out = append(out, body[cursor:]...)
	return string(out)
}
