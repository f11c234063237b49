package services

import (
	"sort"
	"strings"

	"massa-backend/internal/models"
)

// BinderTab selects the journal listing
type BinderTab string

const (
	BinderAll       BinderTab = "all"
	BinderTrending  BinderTab = "trending"
	BinderFollowing BinderTab = "following"
)

const (
	trendingMinViews = 1000
	trendingLimit    = 15
)

// ParseBinderTab returns the tab named s; empty means all
func ParseBinderTab(s string) (BinderTab, bool) {
	switch BinderTab(s) {
	case "", BinderAll:
		return BinderAll, true
	case BinderTrending, BinderFollowing:
		return BinderTab(s), true
	}
	return "", false
}

// FilterFeed returns the published posts whose content or title contains
// query, case-insensitively. Order is kept.
func FilterFeed(posts []models.Post, query string) []models.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Post{}
	for _, p := range posts {
		if !p.Published() {
			continue
		}
		if q != "" && !containsFold(p.Content, q) && !containsFold(p.Title, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterBinder lists published journals for tab. followed is consulted only
// by the following tab.
func FilterBinder(posts []models.Post, query string, tab BinderTab, followed func(authorID string) bool) []models.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	list := []models.Post{}
	for _, p := range posts {
		if p.Type != models.PostTypeJournal || !p.Published() {
			continue
		}
		if q != "" &&
			!containsFold(p.Title, q) &&
			!containsFold(p.Content, q) &&
			!strings.Contains(strings.ToLower(p.User.Name), q) {
			continue
		}
		list = append(list, p)
	}

	switch tab {
	case BinderTrending:
		hot := list[:0]
		for _, p := range list {
			if views(p) > trendingMinViews {
				hot = append(hot, p)
			}
		}
		sort.SliceStable(hot, func(i, j int) bool { return views(hot[i]) > views(hot[j]) })
		if len(hot) > trendingLimit {
			hot = hot[:trendingLimit]
		}
		return hot
	case BinderFollowing:
		out := []models.Post{}
		for _, p := range list {
			if followed != nil && followed(p.UserID) {
				out = append(out, p)
			}
		}
		return newestFirst(out)
	default:
		return newestFirst(list)
	}
}

// ProfilePosts is a profile page split into its tabs
type ProfilePosts struct {
	Status   []models.Post `json:"status"`
	Notebook []models.Post `json:"notebook"`
	Saved    []models.Post `json:"saved,omitempty"`
}

// ProfileView splits posts for the profile of ownerID. Unpublished journals
// and the saved tab are only shown when the viewer owns the profile.
func ProfileView(posts []models.Post, ownerID, viewerID string, saved func(postID string) bool) ProfilePosts {
	own := viewerID != "" && viewerID == ownerID
	view := ProfilePosts{Status: []models.Post{}, Notebook: []models.Post{}}
	if own {
		view.Saved = []models.Post{}
	}
	for _, p := range posts {
		if p.UserID == ownerID {
			if p.Type != models.PostTypeJournal {
				view.Status = append(view.Status, p)
			} else if own || p.Published() {
				view.Notebook = append(view.Notebook, p)
			}
		}
		if own && saved != nil && saved(p.ID) {
			view.Saved = append(view.Saved, p)
		}
	}
	return view
}

// JournalPath returns the permalink of a journal post
func JournalPath(p models.Post) string {
	title := ""
	if p.Title != nil {
		title = *p.Title
	}
	return "/journal/" + p.ID + "/" + models.Slug(title)
}

func newestFirst(posts []models.Post) []models.Post {
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt > posts[j].CreatedAt })
	return posts
}

func views(p models.Post) int64 {
	if p.Views == nil {
		return 0
	}
	return *p.Views
}

func containsFold(s *string, lowerQuery string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), lowerQuery)
}
