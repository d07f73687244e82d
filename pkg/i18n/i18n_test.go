// SPDX-License-Identifier: AGPL-3.0-or-later
package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatchLocaleDefaultsToEnglish(t *testing.T) {
	assert.Equal(t, language.English, MatchLocale(""))
	assert.Equal(t, language.English, MatchLocale("not-a-tag;;;"))
}

func TestMatchLocalePicksClosestSupportedTag(t *testing.T) {
	assert.Equal(t, language.French, MatchLocale("fr-CA,fr;q=0.9,en;q=0.1"))
	assert.Equal(t, language.Spanish, MatchLocale("es"))
}

func TestSummarizeVerdictEnglish(t *testing.T) {
	summary := SummarizeVerdict(language.English, true, true, true, true)
	assert.Contains(t, summary, "trusted")
	assert.Contains(t, summary, "valid")
	assert.Contains(t, summary, "unchanged")
	assert.Contains(t, summary, "matches")
}

func TestSummarizeVerdictFrenchNegatives(t *testing.T) {
	summary := SummarizeVerdict(language.French, false, false, false, false)
	assert.Contains(t, summary, "non fiable")
	assert.Contains(t, summary, "invalide")
	assert.Contains(t, summary, "modifiée")
	assert.Contains(t, summary, "ne correspond pas")
}

func TestSummarizeVerdictUnsupportedLocaleFallsBackToEnglish(t *testing.T) {
	summary := SummarizeVerdict(language.German, true, false, true, false)
	assert.Contains(t, summary, "trusted")
	assert.Contains(t, summary, "invalid")
}
