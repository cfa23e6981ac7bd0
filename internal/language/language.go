package language

import (
	"slices"
	"strings"
)

// Language is a spoken language the transcription engines accept.
type Language struct {
	Code string // ISO 639-1 code, e.g. "en"
	Name string
}

// Default leaves the choice to the engine (the page's locale for the
// browser engine, English for Deepgram).
var Default = Language{Code: "", Name: "Engine default"}

// languages are the codes accepted by both the Web Speech API and Deepgram's
// live endpoint.
var languages = []Language{
	{"ar", "Arabic"},
	{"bg", "Bulgarian"},
	{"bn", "Bengali"},
	{"ca", "Catalan"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"de", "German"},
	{"el", "Greek"},
	{"en", "English"},
	{"es", "Spanish"},
	{"et", "Estonian"},
	{"fa", "Persian"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"he", "Hebrew"},
	{"hi", "Hindi"},
	{"hr", "Croatian"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"lt", "Lithuanian"},
	{"lv", "Latvian"},
	{"ms", "Malay"},
	{"nl", "Dutch"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"sl", "Slovenian"},
	{"sv", "Swedish"},
	{"ta", "Tamil"},
	{"te", "Telugu"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"ur", "Urdu"},
	{"vi", "Vietnamese"},
	{"zh", "Chinese"},
}

// Parse resolves a code with an optional upper-case region ("en", "en-US").
// The empty code resolves to Default.
func Parse(code string) (Language, bool) {
	if code == "" {
		return Default, true
	}
	base, region, hasRegion := strings.Cut(code, "-")
	if hasRegion && (len(region) != 2 || strings.ToUpper(region) != region) {
		return Language{}, false
	}
	i, ok := slices.BinarySearchFunc(languages, base, func(l Language, code string) int {
		return strings.Compare(l.Code, code)
	})
	if !ok {
		return Language{}, false
	}
	lang := languages[i]
	if hasRegion {
		lang.Code = code
		lang.Name += " (" + region + ")"
	}
	return lang, true
}

// IsValid reports whether Parse accepts code.
func IsValid(code string) bool {
	_, ok := Parse(code)
	return ok
}

// List returns the base languages sorted by code, without Default.
func List() []Language {
	return slices.Clone(languages)
}
