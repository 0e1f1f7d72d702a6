package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	smartQuoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", `'`, "’", `'`,
	)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	singleQuotedRe  = regexp.MustCompile(`'([^'\\]*)'`)
	bareWordRe      = regexp.MustCompile(`:\s*([A-Za-z_][A-Za-z0-9_\-]*)(\s*[,}\]])`)
)

// TryFixJSON attempts common repairs on text that failed to parse as JSON:
// smart-quote normalization, single-to-double quote conversion, quoting of
// bare keys and bare-word values, and trailing-comma removal. The repaired
// text is returned only if it now parses; otherwise ok is false.
func TryFixJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if json.Valid([]byte(text)) {
		return text, true
	}

	fixed := smartQuoteReplacer.Replace(text)
	fixed = singleQuotedRe.ReplaceAllString(fixed, `"$1"`)
	fixed = unquotedKeyRe.ReplaceAllString(fixed, `$1"$2":`)
	fixed = bareWordRe.ReplaceAllStringFunc(fixed, quoteBareWord)
	fixed = trailingCommaRe.ReplaceAllString(fixed, `$1`)

	if !json.Valid([]byte(fixed)) {
		return "", false
	}
	return fixed, true
}

// quoteBareWord quotes bare-word values, leaving JSON literals alone.
func quoteBareWord(match string) string {
	parts := bareWordRe.FindStringSubmatch(match)
	word := parts[1]
	switch word {
	case "true", "false", "null":
		return match
	}
	return `: "` + word + `"` + parts[2]
}
