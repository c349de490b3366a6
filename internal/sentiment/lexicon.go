package sentiment

import (
	"strings"
	"unicode"
)

// polarity of headline vocabulary, in [-1, 1]
var lexicon = map[string]float64{
	"good": 0.7, "great": 0.8, "excellent": 1.0, "strong": 0.43, "stronger": 0.5,
	"best": 1.0, "better": 0.5, "positive": 0.23, "gain": 0.4, "gains": 0.4,
	"surge": 0.5, "surges": 0.5, "soar": 0.6, "soars": 0.6, "rally": 0.5,
	"rallies": 0.5, "jump": 0.3, "jumps": 0.3, "rise": 0.2, "rises": 0.2,
	"record": 0.3, "high": 0.16, "higher": 0.25, "beat": 0.4, "beats": 0.4,
	"boost": 0.4, "boosts": 0.4, "bullish": 0.6, "upgrade": 0.5, "upgrades": 0.5,
	"growth": 0.3, "profit": 0.3, "profitable": 0.5, "win": 0.8, "wins": 0.8,
	"success": 0.3, "successful": 0.75, "optimistic": 0.5, "outperform": 0.5,
	"recover": 0.3, "recovery": 0.3, "rebound": 0.3, "breakthrough": 0.6,
	"innovative": 0.5, "impressive": 1.0, "robust": 0.4, "solid": 0.3,
	"happy": 0.8, "love": 0.5, "new": 0.14, "top": 0.5, "up": 0.1,
	"bad": -0.7, "worse": -0.4, "worst": -1.0, "weak": -0.38, "weaker": -0.4,
	"negative": -0.3, "loss": -0.4, "losses": -0.4, "lose": -0.4, "loses": -0.4,
	"fall": -0.3, "falls": -0.3, "drop": -0.3, "drops": -0.3, "plunge": -0.6,
	"plunges": -0.6, "crash": -0.7, "crashes": -0.7, "slump": -0.5, "slumps": -0.5,
	"tumble": -0.5, "tumbles": -0.5, "sink": -0.4, "sinks": -0.4, "decline": -0.3,
	"declines": -0.3, "low": -0.1, "lower": -0.2, "miss": -0.4, "misses": -0.4,
	"bearish": -0.6, "downgrade": -0.5, "downgrades": -0.5, "lawsuit": -0.4,
	"fraud": -0.8, "risk": -0.2, "risky": -0.5, "fear": -0.6, "fears": -0.6,
	"concern": -0.3, "concerns": -0.3, "warning": -0.4, "warns": -0.4,
	"recession": -0.6, "crisis": -0.7, "bankrupt": -0.8, "bankruptcy": -0.8,
	"layoffs": -0.5, "volatile": -0.3, "uncertain": -0.3, "uncertainty": -0.3,
	"sell-off": -0.5, "selloff": -0.5, "fail": -0.5, "fails": -0.5, "failure": -0.6,
	"terrible": -1.0, "poor": -0.4, "down": -0.16, "hack": -0.6, "hacked": -0.7,
	"scandal": -0.7, "probe": -0.3, "fine": 0.42, "fined": -0.4, "ban": -0.4,
}

// multipliers applied to the next sentiment word
var intensifiers = map[string]float64{
	"very": 1.3, "extremely": 1.5, "highly": 1.3, "really": 1.2, "sharply": 1.4,
	"massive": 1.4, "huge": 1.3, "slightly": 0.6, "somewhat": 0.7, "barely": 0.5,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "without": true, "nor": true,
	"isn't": true, "wasn't": true, "don't": true, "doesn't": true, "didn't": true,
	"can't": true, "won't": true, "aren't": true,
}

// Polarity scores a headline in [-1, 1] as the mean of its sentiment words.
// A negation flips and halves the next sentiment word. Text without
// sentiment words scores 0.
func Polarity(text string) float64 {
	var sum float64
	var count int

	multiplier := 1.0
	negated := false
	for _, tok := range tokenize(text) {
		if negations[tok] {
			negated = true
			continue
		}
		if m, ok := intensifiers[tok]; ok {
			multiplier *= m
			continue
		}
		v, ok := lexicon[tok]
		if !ok {
			continue
		}

		v *= multiplier
		if negated {
			v *= -0.5
		}
		sum += clamp(v)
		count++
		multiplier = 1.0
		negated = false
	}

	if count == 0 {
		return 0
	}
	return clamp(sum / float64(count))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-'
	})
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
