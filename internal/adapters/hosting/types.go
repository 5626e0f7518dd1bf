// Package hosting talks to the code hosting service that owns the
// repositories being harvested.
package hosting

import (
	"context"
	"time"
)

// Client is the read-only view of the hosting service used by a harvest pass.
type Client interface {
	// ListRepositories follows pagination to the end, sorted by name ascending.
	ListRepositories(ctx context.Context) ([]RepositoryName, error)
	GetRepository(ctx context.Context, name string) (Metadata, error)
	ListTags(ctx context.Context, arn string) (map[string]string, error)
	// CountBranches follows pagination and returns the total branch count.
	CountBranches(ctx context.Context, name string) (int, error)
	// GetFile returns the decoded content of path on the default branch.
	GetFile(ctx context.Context, name, path string) ([]byte, error)
}

// RepositoryName is one entry of a repository listing.
type RepositoryName struct {
	RepositoryID   string `json:"repositoryId"`
	RepositoryName string `json:"repositoryName"`
}

// Metadata describes a single repository.
type Metadata struct {
	RepositoryID          string    `json:"repositoryId"`
	RepositoryName        string    `json:"repositoryName"`
	Arn                   string    `json:"Arn"`
	CloneURLHTTP          string    `json:"cloneUrlHttp"`
	RepositoryDescription *string   `json:"repositoryDescription,omitempty"`
	CreationDate          time.Time `json:"creationDate"`
	LastModifiedDate      time.Time `json:"lastModifiedDate"`
	DefaultBranch         *string   `json:"defaultBranch,omitempty"`
}

type listRepositoriesResponse struct {
	Repositories []RepositoryName `json:"repositories"`
	NextToken    string           `json:"nextToken"`
}

type getRepositoryResponse struct {
	RepositoryMetadata Metadata `json:"repositoryMetadata"`
}

type listTagsResponse struct {
	Tags map[string]string `json:"tags"`
}

type listBranchesResponse struct {
	Branches  []string `json:"branches"`
	NextToken string   `json:"nextToken"`
}

type getFileResponse struct {
	CommitID    string `json:"commitId"`
	FilePath    string `json:"filePath"`
	FileContent string `json:"fileContent"`
}
