// Package model contains domain models passed between layers.
package model

import "time"

// Repository is one entry of the published collection. JSON names follow
// the portal format so the file can be served as-is.
type Repository struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	HTMLURL         string    `json:"html_url"`
	Description     *string   `json:"description,omitempty"` // nil when the hosting service has none
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	PushedAt        time.Time `json:"pushed_at"`
	DefaultBranch   *string   `json:"default_branch,omitempty"`
	ForksCount      int       `json:"forks_count"` // branch count; the hosting service has no forks
	Language        string    `json:"language,omitempty"`
	License         string    `json:"license,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	StargazersCount string    `json:"stargazers_count"`
	WatchersCount   string    `json:"watchers_count"`
	OpenIssuesCount string    `json:"open_issues_count"`
	Owner           Owner     `json:"owner"`
	Score           int       `json:"score"`
	Manifest        *Manifest `json:"_InnerSourceMetadata"`
}

// Owner is the placeholder owner block the portal requires.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// HasDescription reports whether a description was supplied.
func (r *Repository) HasDescription() bool {
	return r.Description != nil
}

// HasManifest reports whether manifest data was merged into the record.
func (r *Repository) HasManifest() bool {
	return r.Manifest != nil && !r.Manifest.IsEmpty()
}

// Clone returns a copy that shares no mutable state with r.
func (r Repository) Clone() Repository {
	out := r
	if r.Description != nil {
		d := *r.Description
		out.Description = &d
	}
	if r.DefaultBranch != nil {
		b := *r.DefaultBranch
		out.DefaultBranch = &b
	}
	if r.Topics != nil {
		out.Topics = append([]string(nil), r.Topics...)
	}
	if r.Manifest != nil {
		m := r.Manifest.Clone()
		out.Manifest = &m
	}
	return out
}

// Job is the unit of work flowing through the harvest queue.
type Job struct {
	RunID string // harvest pass identifier
	Name  string // repository name
	Seq   int    // listing position, used for stable ordering
}
