package lexical

import "strings"

// Stem reduces an English word to its Porter stem. No third-party Porter
// implementation surfaced anywhere in the example pack (verified by
// grepping every go.sum/go.mod for "porter"/"stem"), so this follows the
// published Porter algorithm steps directly — see DESIGN.md for the
// standard-library justification.
func Stem(word string) string {
	w := strings.ToLower(word)
	if len(w) <= 2 {
		return w
	}
	w = step1a(w)
	w = step1b(w)
	w = step1c(w)
	w = step2(w)
	w = step3(w)
	w = step4(w)
	w = step5a(w)
	w = step5b(w)
	return w
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

// measure counts the number of VC sequences in the consonant/vowel
// pattern of w, treating 'y' as a consonant when it follows a vowel or
// starts the word, and as a vowel otherwise (standard Porter "m").
func measure(w string) int {
	vcSeq := consonantVowelPattern(w)
	m := 0
	for i := 0; i+1 < len(vcSeq); i++ {
		if vcSeq[i] == 'V' && vcSeq[i+1] == 'C' {
			m++
		}
	}
	return m
}

func consonantVowelPattern(w string) string {
	var sb strings.Builder
	prevVowel := false
	for i := 0; i < len(w); i++ {
		c := w[i]
		var vowel bool
		if c == 'y' {
			if i == 0 {
				vowel = false
			} else {
				vowel = !isVowel(w[i-1])
			}
		} else {
			vowel = isVowel(c)
		}
		if vowel {
			sb.WriteByte('V')
		} else {
			sb.WriteByte('C')
		}
		prevVowel = vowel
		_ = prevVowel
	}
	return sb.String()
}

func containsVowel(w string) bool {
	pat := consonantVowelPattern(w)
	return strings.Contains(pat, "V")
}

func endsDoubleConsonant(w string) bool {
	n := len(w)
	if n < 2 {
		return false
	}
	return w[n-1] == w[n-2] && !isVowel(w[n-1])
}

// endsCVC reports the "cvc" rule: ends consonant-vowel-consonant where
// the final consonant is not w, x, or y.
func endsCVC(w string) bool {
	n := len(w)
	if n < 3 {
		return false
	}
	pat := consonantVowelPattern(w)
	if len(pat) < 3 {
		return false
	}
	last3 := pat[len(pat)-3:]
	if last3 != "CVC" {
		return false
	}
	switch w[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func replaceSuffix(w, suffix, repl string, minMeasure int, cond func(stem string) bool) (string, bool) {
	if !strings.HasSuffix(w, suffix) {
		return w, false
	}
	stem := strings.TrimSuffix(w, suffix)
	if cond != nil && !cond(stem) {
		return w, false
	}
	if minMeasure >= 0 && measure(stem) < minMeasure {
		return w, false
	}
	return stem + repl, true
}

func step1a(w string) string {
	for _, s := range [][2]string{{"sses", "ss"}, {"ies", "i"}, {"ss", "ss"}} {
		if strings.HasSuffix(w, s[0]) {
			return strings.TrimSuffix(w, s[0]) + s[1]
		}
	}
	if strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		stem := strings.TrimSuffix(w, "s")
		if containsVowel(strings.TrimSuffix(stem, "s")) || (len(stem) > 1 && containsVowel(stem[:len(stem)-1])) {
			return stem
		}
	}
	return w
}

func step1b(w string) string {
	if out, ok := replaceSuffix(w, "eed", "ee", 0, nil); ok {
		return out
	}
	for _, suf := range []string{"ed", "ing"} {
		if strings.HasSuffix(w, suf) {
			stem := strings.TrimSuffix(w, suf)
			if containsVowel(stem) {
				return step1bFixup(stem)
			}
		}
	}
	return w
}

func step1bFixup(stem string) string {
	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case endsDoubleConsonant(stem) && !strings.HasSuffix(stem, "l") && !strings.HasSuffix(stem, "s") && !strings.HasSuffix(stem, "z"):
		return stem[:len(stem)-1]
	case measure(stem) == 1 && endsCVC(stem):
		return stem + "e"
	}
	return stem
}

func step1c(w string) string {
	if strings.HasSuffix(w, "y") {
		stem := strings.TrimSuffix(w, "y")
		if containsVowel(stem) {
			return stem + "i"
		}
	}
	return w
}

var step2Suffixes = [][2]string{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

func step2(w string) string {
	for _, s := range step2Suffixes {
		if out, ok := replaceSuffix(w, s[0], s[1], 1, nil); ok {
			return out
		}
	}
	return w
}

var step3Suffixes = [][2]string{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
}

func step3(w string) string {
	for _, s := range step3Suffixes {
		if out, ok := replaceSuffix(w, s[0], s[1], 1, nil); ok {
			return out
		}
	}
	return w
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement",
	"ment", "ent", "ism", "ate", "iti", "ous", "ive", "ize",
}

func step4(w string) string {
	if strings.HasSuffix(w, "ion") {
		stem := strings.TrimSuffix(w, "ion")
		if measure(stem) >= 2 && (strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "t")) {
			return stem
		}
	}
	for _, suf := range step4Suffixes {
		if out, ok := replaceSuffix(w, suf, "", 2, nil); ok {
			return out
		}
	}
	return w
}

func step5a(w string) string {
	if strings.HasSuffix(w, "e") {
		stem := strings.TrimSuffix(w, "e")
		if measure(stem) > 1 {
			return stem
		}
		if measure(stem) == 1 && !endsCVC(stem) {
			return stem
		}
	}
	return w
}

func step5b(w string) string {
	if measure(w) > 1 && endsDoubleConsonant(w) && strings.HasSuffix(w, "l") {
		return w[:len(w)-1]
	}
	return w
}
