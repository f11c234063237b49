package models

import "time"

// PostType is the variant of a post, derived from which assets it carries
type PostType string

const (
	PostTypeText       PostType = "TEXT"
	PostTypeVoice      PostType = "VOICE"
	PostTypeTextVoice  PostType = "TEXT_VOICE"
	PostTypePhotoVoice PostType = "PHOTO_VOICE"
	PostTypeJournal    PostType = "JOURNAL"
)

// Valid reports whether t is a known post type
func (t PostType) Valid() bool {
	switch t {
	case PostTypeText, PostTypeVoice, PostTypeTextVoice, PostTypePhotoVoice, PostTypeJournal:
		return true
	}
	return false
}

// PostDuration is the declared lifetime of a status.
// TEMP means a 24h expiry was intended; nothing enforces it.
type PostDuration string

const (
	DurationTemp PostDuration = "TEMP"
	DurationPerm PostDuration = "PERM"
)

// Valid reports whether d is a known duration
func (d PostDuration) Valid() bool {
	return d == DurationTemp || d == DurationPerm
}

// User represents a profile row
type User struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Handle           string `json:"handle"`
	Avatar           string `json:"avatar"`
	LastHandleUpdate *int64 `json:"lastHandleUpdate,omitempty"`
}

// Reply represents an immutable reply to a post
type Reply struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// Post is the view model of a status or journal entry
type Post struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	User        User         `json:"user"`
	Type        PostType     `json:"type"`
	Duration    PostDuration `json:"duration"`
	CreatedAt   int64        `json:"createdAt"`
	Content     *string      `json:"content,omitempty"`
	Title       *string      `json:"title,omitempty"`
	AudioURL    *string      `json:"audioUrl,omitempty"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
	Likes       int64        `json:"likes"`
	HasLiked    bool         `json:"hasLiked"`
	Replies     []Reply      `json:"replies"`
	IsPublished *bool        `json:"isPublished,omitempty"`
	Views       *int64       `json:"views,omitempty"`
	Shares      *int64       `json:"shares,omitempty"`
}

// Published reports whether the post is visible in public feeds.
// A missing flag counts as published.
func (p *Post) Published() bool {
	return p.IsPublished == nil || *p.IsPublished
}

// PostDraft is the input of a new post
type PostDraft struct {
	Type        PostType     `json:"type,omitempty"`
	Duration    PostDuration `json:"duration,omitempty"`
	Content     *string      `json:"content,omitempty"`
	Title       *string      `json:"title,omitempty"`
	AudioURL    *string      `json:"audioUrl,omitempty"`
	ImageURL    *string      `json:"imageUrl,omitempty"`
	IsPublished *bool        `json:"isPublished,omitempty"`
}

// PostEdit carries the fields that may change after creation
type PostEdit struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Content     *string `json:"content,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	IsPublished *bool   `json:"isPublished,omitempty"`
}

// EdgeKind names one of the existence-only relationships
type EdgeKind string

const (
	EdgeSave    EdgeKind = "saved"
	EdgeFollow  EdgeKind = "followed"
	EdgeConnect EdgeKind = "connected"
)

// ParseEdgeKind converts a path segment into an EdgeKind
func ParseEdgeKind(s string) (EdgeKind, bool) {
	switch EdgeKind(s) {
	case EdgeSave, EdgeFollow, EdgeConnect:
		return EdgeKind(s), true
	}
	return "", false
}

// Account is the credential record kept by the auth layer
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         *string   `json:"name,omitempty"`
	Handle       *string   `json:"handle,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession is one sign-in of an account
type AuthSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Theme is the colour scheme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Language is the UI language preference
type Language string

const (
	LanguageID Language = "id"
	LanguageEN Language = "en"
)
