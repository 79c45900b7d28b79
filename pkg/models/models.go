// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// GitHubIssue represents a GitHub issue with its essential fields
type GitHubIssue struct {
	// Number is the issue number in GitHub (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// Description is the full body text of the issue
	Description string

	// State is the current state of the issue ("open" or "closed")
	State string

	// Creator is the login of the account that opened the issue
	Creator string

	// CreatedAt is the timestamp when the issue was created
	CreatedAt time.Time

	// ClosedAt is the timestamp when the issue was closed
	ClosedAt *time.Time
}

// IsOpen reports whether the issue is currently open.
func (i GitHubIssue) IsOpen() bool {
	return i.State == "open"
}

// Comment is a single comment posted on an issue.
type Comment struct {
	ID     int64
	Author string

	// AuthorAssociation is the author's relationship to the repository
	// (e.g., "OWNER", "MEMBER", "CONTRIBUTOR").
	AuthorAssociation string

	Body      string
	CreatedAt time.Time
}

// PullRequest holds the pull request fields the app compares and links to.
type PullRequest struct {
	Number  int
	Title   string
	State   string
	Head    string
	Base    string
	HTMLURL string
}

// NewPullRequest describes a pull request to be opened.
type NewPullRequest struct {
	Title string
	Head  string
	Base  string
	Body  string
}

// Branch is a named ref and the commit it points to.
type Branch struct {
	Name string
	SHA  string
}

// Repository holds the repository metadata used for compliance checks and
// citation synthesis.
type Repository struct {
	Owner         string
	Name          string
	FullName      string
	Description   string
	Homepage      string
	HTMLURL       string
	DefaultBranch string

	// LicenseSPDXID is empty when GitHub did not detect a license.
	LicenseSPDXID string

	Topics []string
}

// Contributor is a repository contributor as listed by the contributors API.
type Contributor struct {
	Login         string
	Type          string
	Contributions int
}

// User is a public user profile.
type User struct {
	Login   string
	Name    string
	Company string
	Email   string

	// Type is "User", "Organization" or "Bot".
	Type string
}

// IsBot reports whether the profile belongs to an automation account.
func (u User) IsBot() bool {
	return u.Type == "Bot"
}

// Release is a published repository release.
type Release struct {
	TagName     string
	Name        string
	Draft       bool
	Prerelease  bool
	PublishedAt *time.Time
}
