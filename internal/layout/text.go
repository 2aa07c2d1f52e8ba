package layout

import (
	"strings"
	"unicode/utf8"
)

// Measurer reports the rendered width of a string at a font size in points.
type Measurer interface {
	StringWidth(text string, size float64) float64
}

// FixedWidthMeasurer approximates every glyph as Ratio times the font size.
// It keeps layout independent of any font file.
type FixedWidthMeasurer struct {
	Ratio float64
}

func (m FixedWidthMeasurer) StringWidth(text string, size float64) float64 {
	ratio := m.Ratio
	if ratio <= 0 {
		ratio = 0.5
	}
	return float64(utf8.RuneCountInString(text)) * size * ratio
}

// wrap breaks text into lines no wider than width. Explicit newlines are kept
// as paragraph breaks, blank paragraphs survive as empty lines and words that
// cannot fit on their own are broken between runes.
func wrap(m Measurer, text string, size, width float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if m.StringWidth(candidate, size) <= width {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			for m.StringWidth(word, size) > width {
				head, rest := breakWord(m, word, size, width)
				lines = append(lines, head)
				word = rest
			}
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// breakWord returns the longest prefix of word that fits, and the remainder.
// At least one rune is always consumed.
func breakWord(m Measurer, word string, size, width float64) (string, string) {
	end := 0
	for i, r := range word {
		next := i + utf8.RuneLen(r)
		if end > 0 && m.StringWidth(word[:next], size) > width {
			break
		}
		end = next
	}
	return word[:end], word[end:]
}
