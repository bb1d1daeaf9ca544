package handlers

import "strings"

// negativeWords/positiveWords back the deterministic lexicon fallback
// required by spec.md's open question on §4.4.4: if the provider cannot be
// constrained to a numeric sentiment score, a lexicon-based scorer stands in.
var negativeWords = map[string]float64{
	"unacceptable": -0.6, "furious": -0.8, "angry": -0.6, "terrible": -0.7,
	"disgusted": -0.7, "refund": -0.3, "complaint": -0.3, "cancel": -0.4,
	"scam": -0.8, "fraud": -0.8, "worst": -0.7, "never": -0.2, "awful": -0.7,
	"unhappy": -0.5, "disappointed": -0.5, "ridiculous": -0.6,
}

var positiveWords = map[string]float64{
	"thanks": 0.4, "thank": 0.4, "great": 0.5, "excellent": 0.6,
	"happy": 0.5, "pleased": 0.5, "appreciate": 0.4, "love": 0.6,
	"wonderful": 0.6, "perfect": 0.6,
}

// lexiconSentiment scores text in [-1,1] by averaging the weights of the
// matched words and clamping, a coarse but deterministic stand-in for a model
// call.
func lexiconSentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	var total float64
	var hits int
	for _, w := range words {
		w = strings.Trim(w, ".,!?\"'")
		if weight, ok := negativeWords[w]; ok {
			total += weight
			hits++
			continue
		}
		if weight, ok := positiveWords[w]; ok {
			total += weight
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	score := total / float64(hits)
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}
