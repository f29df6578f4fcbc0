package extract

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DetectLanguage returns the ISO 639-1 code of the dominant language in
// text, or "unknown" when detection is unreliable or the text is too short
// to classify.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "unknown"
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "unknown"
	}
	if code := whatlanggo.LangToStringShort(info.Lang); code != "" {
		return code
	}
	if code := whatlanggo.LangToString(info.Lang); code != "" {
		return code
	}
	return "unknown"
}
