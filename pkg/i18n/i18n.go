// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n translates the fixed set of human-readable verdict summaries a
// signature-chain verification produces into the caller's preferred locale.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

var (
	supported = []language.Tag{
		language.English,
		language.French,
		language.Spanish,
	}
	matcher = language.NewMatcher(supported)
)

// MatchLocale resolves an Accept-Language-style header value to one of the
// supported tags, defaulting to English when acceptLanguage is empty or matches
// nothing closely enough.
func MatchLocale(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return language.English
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}

	_, index, _ := matcher.Match(tags...)
	if index < len(supported) {
		return supported[index]
	}
	return language.English
}

var summaryTemplates = map[language.Tag]string{
	language.English: "resource is %s, %s, %s, and its original %s the masked value",
	language.French:  "la ressource est %s, %s, %s, et son original %s la valeur masquée",
	language.Spanish: "el recurso es %s, %s, %s, y su original %s el valor enmascarado",
}

var boolWords = map[language.Tag]map[string][2]string{
	language.English: {
		"trusted":   {"trusted", "untrusted"},
		"valid":     {"valid", "invalid"},
		"unchanged": {"unchanged", "changed"},
		"matches":   {"matches", "does not match"},
	},
	language.French: {
		"trusted":   {"de confiance", "non fiable"},
		"valid":     {"valide", "invalide"},
		"unchanged": {"inchangée", "modifiée"},
		"matches":   {"correspond à", "ne correspond pas à"},
	},
	language.Spanish: {
		"trusted":   {"confiable", "no confiable"},
		"valid":     {"válido", "inválido"},
		"unchanged": {"sin cambios", "modificado"},
		"matches":   {"coincide con", "no coincide con"},
	},
}

// SummarizeVerdict renders a one-line, localized summary of a chain verdict's four
// booleans, in the given locale.
func SummarizeVerdict(locale language.Tag, trusted, valid, unchanged, matches bool) string {
	template, ok := summaryTemplates[locale]
	if !ok {
		template = summaryTemplates[language.English]
		locale = language.English
	}
	words := boolWords[locale]

	return fmt.Sprintf(template,
		wordFor(words["trusted"], trusted),
		wordFor(words["valid"], valid),
		wordFor(words["unchanged"], unchanged),
		wordFor(words["matches"], matches),
	)
}

func wordFor(pair [2]string, ok bool) string {
	if ok {
		return pair[0]
	}
	return pair[1]
}
