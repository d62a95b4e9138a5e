// Package lang classifies text into a small closed set of languages using
// character-range heuristics. Classification is a total function: every
// input maps to exactly one language.
package lang

// Language is a human-readable language name, matching the keys of the
// configured language map.
type Language string

const (
	Chinese  Language = "Chinese"
	Japanese Language = "Japanese"
	Korean   Language = "Korean"
	English  Language = "English"
	Thai     Language = "Thai"
	French   Language = "French"
	German   Language = "German"
)

// Unicode ranges used by the classifier.
const (
	hiraganaLo = 0x3040
	hiraganaHi = 0x309F
	katakanaLo = 0x30A0
	katakanaHi = 0x30FF
	hangulLo   = 0xAC00
	hangulHi   = 0xD7AF
	cjkLo      = 0x4E00
	cjkHi      = 0x9FFF
	jpPunctLo  = 0x3000
	jpPunctHi  = 0x303F
)

// Detect classifies text by script. The rules rank, not the characters:
// the whole string is scanned first, then the rules apply in order, so a
// lower-ranked script appearing earlier in the text cannot win.
//  1. Hiragana or Katakana -> Japanese
//  2. Hangul syllables -> Korean
//  3. CJK ideographs together with the CJK punctuation band -> Japanese
//     (shared Han characters are ambiguous; the punctuation co-occurrence
//     is treated as a Japanese signal)
//  4. CJK ideographs alone -> Chinese
//  5. anything else, including empty input -> English
func Detect(text string) Language {
	var hasKana, hasHangul, hasCJK, hasPunct bool
	for _, r := range text {
		switch {
		case r >= hiraganaLo && r <= hiraganaHi, r >= katakanaLo && r <= katakanaHi:
			hasKana = true
		case r >= hangulLo && r <= hangulHi:
			hasHangul = true
		case r >= cjkLo && r <= cjkHi:
			hasCJK = true
		case r >= jpPunctLo && r <= jpPunctHi:
			hasPunct = true
		}
	}
	switch {
	case hasKana:
		return Japanese
	case hasHangul:
		return Korean
	case hasCJK && hasPunct:
		return Japanese
	case hasCJK:
		return Chinese
	}
	return English
}

// ContainsScript reports whether text carries the script exclusive to the
// given language. It confirms Chinese, Japanese and Korean only; for any
// other language it returns false, so callers cannot short-circuit and
// must attempt an actual translation.
func ContainsScript(text string, target Language) bool {
	for _, r := range text {
		switch target {
		case Chinese:
			if r >= cjkLo && r <= cjkHi {
				return true
			}
		case Japanese:
			if (r >= hiraganaLo && r <= hiraganaHi) || (r >= katakanaLo && r <= katakanaHi) {
				return true
			}
		case Korean:
			if r >= hangulLo && r <= hangulHi {
				return true
			}
		default:
			return false
		}
	}
	return false
}
