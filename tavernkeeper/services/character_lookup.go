package services

import (
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/tavernkeep/tavern-bot/tavernkeeper/database/models"
)

// characterNames implements fuzzy.Source over a character list.
type characterNames []*models.Character

func (c characterNames) String(i int) string {
	return c[i].Name
}

func (c characterNames) Len() int {
	return len(c)
}

// FindCharacter resolves a user-typed name against a game's characters:
// exact match first (case-insensitive), then best fuzzy match. Returns nil
// when nothing plausibly matches.
func FindCharacter(characters []*models.Character, query string) *models.Character {
	if len(characters) == 0 || query == "" {
		return nil
	}

	for _, ch := range characters {
		if strings.EqualFold(ch.Name, query) {
			return ch
		}
	}

	matches := fuzzy.FindFrom(query, characterNames(characters))
	if len(matches) == 0 {
		return nil
	}
	return characters[matches[0].Index]
}

// SuggestCharacters returns up to limit fuzzy-ranked name suggestions for
// autocomplete.
func SuggestCharacters(characters []*models.Character, query string, limit int) []*models.Character {
	if limit <= 0 {
		return nil
	}
	if query == "" {
		if len(characters) > limit {
			characters = characters[:limit]
		}
		return characters
	}

	matches := fuzzy.FindFrom(query, characterNames(characters))
	out := make([]*models.Character, 0, limit)
	for _, m := range matches {
		out = append(out, characters[m.Index])
		if len(out) == limit {
			break
		}
	}
	return out
}
