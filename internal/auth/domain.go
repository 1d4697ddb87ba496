package auth

import "errors"

// Account is the staff identity looked up at login, joined with its role.
type Account struct {
	UserID       string
	Nickname     string
	Email        string
	PasswordHash string
	Firstname    string
	Lastname     string
	Avatar       string
	Activated    bool
	RoleID       int64
	RoleName     string
	CanAccess    bool
}

// Pair is the credential pair handed to a client.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Grant is the outcome of a successful login, before the session is stored.
type Grant struct {
	Pair
	SessionID string
	UserID    string
	Email     string
}

var (
	// ErrInvalidCredentials covers both an unknown nickname and a wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccessDenied indicates the account's role may not use the back office.
	ErrAccessDenied = errors.New("auth: access denied")
	// ErrInactiveAccount indicates the account has not been activated.
	ErrInactiveAccount = errors.New("auth: inactive account")
	// ErrSessionExpired indicates no live session backs the presented credential.
	ErrSessionExpired = errors.New("auth: session expired")
	// ErrAccountNotFound is returned by repositories when no account matches.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrStoreUnreachable indicates the relational store could not be reached.
	ErrStoreUnreachable = errors.New("auth: store unreachable")
)
