package synth

import "strings"

// 句末标点，中英文都认
var sentenceEnders = map[rune]bool{
	'。': true, '！': true, '？': true, '；': true,
	'.': true, '!': true, '?': true, ';': true,
	'\n': true,
}

// SplitSentences 将文本切分为逐句合成的单元。
// 句末标点保留在句子里，空白片段丢弃。
func SplitSentences(text string) []string {
	sentences := make([]string, 0)
	var b strings.Builder

	flush := func() {
		s := strings.TrimSpace(b.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		b.WriteRune(r)
		if sentenceEnders[r] {
			flush()
		}
	}
	flush()

	return sentences
}
