package services

import "errors"

var (
	ErrNotSignedIn   = errors.New("not signed in")
	ErrLoginRequired = errors.New("login required")
	ErrPostNotFound  = errors.New("post not found")
	ErrEmptyPost     = errors.New("post has no content")
	ErrEmptyReply    = errors.New("reply is empty")
	ErrInvalidDraft  = errors.New("invalid post draft")
	ErrTogglePending = errors.New("previous toggle still pending")

	ErrUserNotFound   = errors.New("user not found")
	ErrHandleTaken    = errors.New("handle already taken")
	ErrHandleCooldown = errors.New("handle was changed too recently")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionRevoked     = errors.New("session has been signed out")

	ErrInvalidUpload = errors.New("invalid upload request")
)
