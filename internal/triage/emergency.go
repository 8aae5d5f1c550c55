package triage

import (
	"slices"
	"strings"
)

// emergencyPhrases is the closed list of crisis phrases. Any single
// case-insensitive substring hit marks the message as an emergency.
var emergencyPhrases = []string{
	"chest pain",
	"can't breathe",
	"cannot breathe",
	"can not breathe",
	"not breathing",
	"trouble breathing",
	"unconscious",
	"passed out",
	"overdose",
	"suicide",
	"suicidal",
	"kill myself",
	"severe bleeding",
	"bleeding heavily",
	"heart attack",
	"stroke",
	"seizure",
	"emergency",
	"urgent",
}

// EmergencyPhrases returns a copy of the crisis phrase list.
func EmergencyPhrases() []string {
	return slices.Clone(emergencyPhrases)
}

// IsEmergency reports whether the unredacted text contains crisis language.
// It must run on the original message so redaction cannot hide a phrase.
func IsEmergency(originalText string) bool {
	_, ok := MatchedEmergencyPhrase(originalText)
	return ok
}

// MatchedEmergencyPhrase returns the first phrase that matched, for logging.
func MatchedEmergencyPhrase(originalText string) (string, bool) {
	text := normalize(originalText)
	for _, phrase := range emergencyPhrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

func normalize(text string) string {
	return apostrophes.Replace(strings.ToLower(text))
}
