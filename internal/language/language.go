// Package language resolves free-form language hints for the speech models.
// A single pair of master tables backs every model; recognition and
// synthesis each support a different subset of the codes.
package language

import (
	"fmt"
	"strings"
)

// codeToName maps ISO codes to the canonical English name (Title Case)
// expected by the generation backend.
var codeToName = map[string]string{
	"ar":  "Arabic",
	"cs":  "Czech",
	"da":  "Danish",
	"de":  "German",
	"el":  "Greek",
	"en":  "English",
	"es":  "Spanish",
	"fa":  "Persian",
	"fi":  "Finnish",
	"fil": "Filipino",
	"fr":  "French",
	"hi":  "Hindi",
	"hu":  "Hungarian",
	"id":  "Indonesian",
	"it":  "Italian",
	"ja":  "Japanese",
	"ko":  "Korean",
	"mk":  "Macedonian",
	"ms":  "Malay",
	"nl":  "Dutch",
	"pl":  "Polish",
	"pt":  "Portuguese",
	"ro":  "Romanian",
	"ru":  "Russian",
	"sv":  "Swedish",
	"th":  "Thai",
	"tr":  "Turkish",
	"vi":  "Vietnamese",
	"yue": "Cantonese",
	"zh":  "Chinese",
}

// aliasToCode maps every known lower-case alias to its ISO code: the codes
// themselves, English names, and a few native-language spellings.
var aliasToCode = map[string]string{
	"ar":         "ar",
	"arabic":     "ar",
	"cantonese":  "yue",
	"chinese":    "zh",
	"cs":         "cs",
	"czech":      "cs",
	"da":         "da",
	"danish":     "da",
	"de":         "de",
	"deutsch":    "de",
	"dutch":      "nl",
	"el":         "el",
	"en":         "en",
	"english":    "en",
	"es":         "es",
	"fa":         "fa",
	"fi":         "fi",
	"finnish":    "fi",
	"fil":        "fil",
	"filipino":   "fil",
	"fr":         "fr",
	"french":     "fr",
	"german":     "de",
	"greek":      "el",
	"hi":         "hi",
	"hindi":      "hi",
	"hu":         "hu",
	"hungarian":  "hu",
	"id":         "id",
	"indonesian": "id",
	"it":         "it",
	"italian":    "it",
	"italiano":   "it",
	"ja":         "ja",
	"japanese":   "ja",
	"ko":         "ko",
	"korean":     "ko",
	"macedonian": "mk",
	"malay":      "ms",
	"mk":         "mk",
	"ms":         "ms",
	"nl":         "nl",
	"pl":         "pl",
	"polish":     "pl",
	"portuguese": "pt",
	"pt":         "pt",
	"ro":         "ro",
	"romanian":   "ro",
	"ru":         "ru",
	"russian":    "ru",
	"spanish":    "es",
	"sv":         "sv",
	"swedish":    "sv",
	"th":         "th",
	"thai":       "th",
	"tr":         "tr",
	"turkish":    "tr",
	"vi":         "vi",
	"vietnamese": "vi",
	"yue":        "yue",
	"zh":         "zh",
}

// synthesisCodes is the fixed subset the synthesis backend accepts.
var synthesisCodes = map[string]struct{}{
	"zh": {}, "en": {}, "de": {}, "it": {}, "pt": {},
	"es": {}, "ja": {}, "ko": {}, "fr": {}, "ru": {},
}

func resolveCode(hint string) (string, bool) {
	code, ok := aliasToCode[strings.ToLower(strings.TrimSpace(hint))]
	return code, ok
}

// IsSupportedRecognitionHint reports whether a free-form hint resolves to a
// code the recognition model supports.
func IsSupportedRecognitionHint(hint string) bool {
	code, ok := resolveCode(hint)
	if !ok {
		return false
	}
	_, known := codeToName[code]
	return known
}

// IsSupportedSynthesisHint reports whether a free-form hint resolves to a
// code the synthesis model supports.
func IsSupportedSynthesisHint(hint string) bool {
	code, ok := resolveCode(hint)
	if !ok {
		return false
	}
	_, supported := synthesisCodes[code]
	return supported
}

// ResolvePromptLanguage picks the explicit hint over the configured default
// and maps it to the canonical prompt name the recognition backend expects.
// The literal "unknown" resolves to none. Unrecognized non-empty values pass
// through unchanged; the backend may still reject them. Returns "" when no
// language should be prompted.
func ResolvePromptLanguage(hint, defaultLanguage string) string {
	selected := strings.TrimSpace(hint)
	if selected == "" {
		selected = strings.TrimSpace(defaultLanguage)
	}
	if selected == "" || strings.EqualFold(selected, "unknown") {
		return ""
	}
	code, ok := resolveCode(selected)
	if !ok {
		return selected
	}
	if name, ok := codeToName[code]; ok {
		return name
	}
	return selected
}

// NormalizeResponseLanguage maps a backend-reported language to a stable
// lower-case code for API responses. The literal "unknown" stays "unknown";
// unrecognized values that look like a 2-3 letter code pass through
// lower-cased; anything else normalizes to "" (absent).
func NormalizeResponseLanguage(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return ""
	}
	if lowered == "unknown" {
		return "unknown"
	}
	if code, ok := aliasToCode[lowered]; ok {
		return code
	}
	if isShortAlphaCode(lowered) {
		return lowered
	}
	return ""
}

// ResolveSynthesisLangCode resolves a hint to the lang_code the synthesis
// backend expects: the lower-case English name, or "auto" when no hint is
// given. Unlike recognition, this path is fail-closed: any non-empty hint
// outside the synthesis set is an error.
func ResolveSynthesisLangCode(hint string) (string, error) {
	value := strings.TrimSpace(hint)
	if value == "" {
		return "auto", nil
	}
	code, ok := resolveCode(value)
	if !ok {
		return "", fmt.Errorf("unsupported synthesis language: %s", hint)
	}
	if _, supported := synthesisCodes[code]; !supported {
		return "", fmt.Errorf("unsupported synthesis language: %s", hint)
	}
	return strings.ToLower(codeToName[code]), nil
}

func isShortAlphaCode(s string) bool {
	if len(s) != 2 && len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
