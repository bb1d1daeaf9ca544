package handlers

import "regexp"

// piiPattern is one entry in the fixed PII pattern configuration scanned by
// the privacy handler (spec.md §4.4.5: "pattern set is a fixed
// configuration"). No example repo in the reference corpus performs PII
// detection, so this is built directly on the standard library's regexp
// package rather than a third-party scanner.
type piiPattern struct {
	kind        string
	re          *regexp.Regexp
	placeholder string
}

var piiPatterns = []piiPattern{
	{
		kind:        "email",
		re:          regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		placeholder: "<EMAIL>",
	},
	{
		kind:        "tax_file_number",
		re:          regexp.MustCompile(`\b\d{3}[ -]?\d{3}[ -]?\d{3}\b`),
		placeholder: "<TFN>",
	},
	{
		kind:        "card_number",
		re:          regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
		placeholder: "<CARD_NUMBER>",
	},
	{
		kind:        "phone",
		re:          regexp.MustCompile(`\b(?:\+?61|0)[ -]?4\d{2}[ -]?\d{3}[ -]?\d{3}\b`),
		placeholder: "<PHONE>",
	},
}
