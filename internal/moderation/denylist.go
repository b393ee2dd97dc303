package moderation

import "strings"

// denylist is the lexical fast path. A hit here short-circuits the
// pipeline without consulting the external classifier.
var denylist = []string{
	"fuck", "shit", "bitch", "asshole", "cunt", "dick", "pussy", "whore",
	"slut", "bastard", "nigger", "faggot", "fag", "dyke", "tranny",
	"retard", "spic", "kike", "chink",
	"fucking", "fucked", "shitty", "bitches", "assholes", "cunts", "dicks",
	"pussies", "whores", "sluts", "bastards", "niggers", "faggots",
	"idiot", "moron", "dumbass", "motherfucker", "cock", "cocksucker",
	"tits", "boobs", "penis", "vagina", "clit", "cum", "jizz", "porn",
	"sex", "rape", "kill", "suicide", "die", "murder", "terrorist", "bomb",
}

// matchesDenylist reports whether text contains a denylisted word on a
// word boundary. The boundary check avoids false positives like "ass"
// inside "glass".
func matchesDenylist(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	for _, token := range tokenize(lower) {
		for _, word := range denylist {
			if token == word {
				return true
			}
		}
	}
	return false
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z':
			return false
		case r >= '0' && r <= '9':
			return false
		default:
			return true
		}
	})
}
