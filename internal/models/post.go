package models

import (
	"regexp"
	"strings"
	"unicode"
)

// DerivePostType classifies a status by the assets it carries.
// An image always yields PHOTO_VOICE, even without audio.
func DerivePostType(hasText, hasImage, hasAudio bool) PostType {
	switch {
	case hasImage:
		return PostTypePhotoVoice
	case hasAudio && hasText:
		return PostTypeTextVoice
	case hasAudio:
		return PostTypeVoice
	default:
		return PostTypeText
	}
}

// TypeOf derives the type of a draft. Journal drafts keep their type.
func (d *PostDraft) TypeOf() PostType {
	if d.Type == PostTypeJournal {
		return PostTypeJournal
	}
	return DerivePostType(nonBlank(d.Content), nonBlank(d.ImageURL), nonBlank(d.AudioURL))
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// NormalizeHandle lowercases, drops all whitespace and leading "@"
// and prefixes exactly one "@".
func NormalizeHandle(h string) string {
	h = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, h)
	return "@" + strings.TrimLeft(h, "@")
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[\s_-]+`)
)

// Slug turns a journal title into a permalink segment
func Slug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
