package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// GitHubStore keeps snapshots as files in a GitHub repository via the
// contents API. Every backup is a new object; nothing is overwritten.
type GitHubStore struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	token      string
	baseURL    string
}

func NewGitHubStore(token, repoOwner, repoName string) *GitHubStore {
	return &GitHubStore{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// GitHub's secondary rate limits punish bursts of content writes.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		token:   token,
		baseURL: fmt.Sprintf("https://api.github.com/repos/%s/%s/contents", repoOwner, repoName),
	}
}

func (s *GitHubStore) doRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+s.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.httpClient.Do(req)
}

// Put uploads a new file. The store is append-only: names carry a
// timestamp so collisions do not happen in practice.
func (s *GitHubStore) Put(ctx context.Context, name string, data []byte) error {
	payload, err := json.Marshal(map[string]string{
		"message": fmt.Sprintf("Database backup %s", name),
		"content": base64.StdEncoding.EncodeToString(data),
		"branch":  "main",
	})
	if err != nil {
		return err
	}

	resp, err := s.doRequest(ctx, http.MethodPut, s.baseURL+"/"+name, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload of %s failed with status %d", name, resp.StatusCode)
	}
	return nil
}

// List returns the names of all files at the repository root.
func (s *GitHubStore) List(ctx context.Context) ([]string, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, s.baseURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// An empty repository has no contents listing yet.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing failed with status %d", resp.StatusCode)
	}

	var files []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}

// Get downloads one file's content.
func (s *GitHubStore) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, s.baseURL+"/"+name, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of %s failed with status %d", name, resp.StatusCode)
	}

	var file struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, err
	}

	// The contents API wraps base64 at 60 columns.
	data, err := base64.StdEncoding.DecodeString(stripNewlines(file.Content))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return data, nil
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
