package gateway

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	assistantMarker = "assistant"
	endOfTurnMarker = "<|im_end|>"
)

// hallucinationTriggers are checked in order; only the first match counts.
var hallucinationTriggers = []string{"该图", "这张图", "图片显示", "The image"}

// Full-width terminators and newlines always end a sentence. ASCII ones only
// do when followed by the end of text or by whitespace and a sentence start,
// so decimals ("2.5") and abbreviations ("approx. 3 cm") are kept whole.
const (
	hardTerminators = "。！？\n"
	softTerminators = ".!?"
)

// Sanitize turns raw generated text into the reply returned to the client.
// It never fails and may return the empty string.
func Sanitize(raw, prompt string) string {
	text, _ := sanitize(raw, prompt)
	return text
}

// sanitize is Sanitize that also reports whether the leading hallucinated
// sentence was removed.
func sanitize(raw, prompt string) (string, bool) {
	text := raw
	if i := strings.LastIndex(raw, assistantMarker); i >= 0 {
		text = raw[i+len(assistantMarker):]
	} else if prompt != "" {
		if i := strings.LastIndex(raw, prompt); i >= 0 {
			text = raw[i+len(prompt):]
		}
	}
	text = strings.TrimSpace(text)

	text = strings.ReplaceAll(text, endOfTurnMarker, "")
	text = strings.TrimLeft(text, ":")
	text = strings.TrimSpace(text)

	return stripHallucinatedOpening(text)
}

// stripHallucinatedOpening removes at most one leading sentence, and only when
// the text opens with a trigger phrase and the sentence is terminated.
func stripHallucinatedOpening(text string) (string, bool) {
	for _, trigger := range hallucinationTriggers {
		if !strings.HasPrefix(text, trigger) {
			continue
		}
		end := sentenceEnd(text)
		if end < 0 {
			return text, false
		}
		_, size := utf8.DecodeRuneInString(text[end:])
		return strings.TrimSpace(text[end+size:]), true
	}
	return text, false
}

// sentenceEnd returns the byte offset of the terminator closing the first
// sentence of text, or -1.
func sentenceEnd(text string) int {
	for i, r := range text {
		if strings.ContainsRune(hardTerminators, r) {
			return i
		}
		if strings.ContainsRune(softTerminators, r) && endsSentence(text[i+1:]) {
			return i
		}
	}
	return -1
}

func endsSentence(rest string) bool {
	if rest == "" {
		return true
	}
	first, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsSpace(first) {
		return false
	}
	next := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if next == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(next)
	return !unicode.IsLower(r) && !unicode.IsDigit(r)
}
