package canvas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxFileBytes caps how much of a file body is downloaded for indexing.
const maxFileBytes = 1 << 20

func courseURL(courseID int64) string {
	return fmt.Sprintf("/api/v1/courses/%d", courseID)
}

// ListAssignments returns all assignments for a course.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]Assignment, error) {
	return fetchAll[Assignment](ctx, c, courseURL(courseID)+"/assignments", nil)
}

// ListFiles returns all files for a course. Institutions frequently disable
// the files tab; callers should expect ErrResourceDisabled.
func (c *Client) ListFiles(ctx context.Context, courseID int64) ([]File, error) {
	return fetchAll[File](ctx, c, courseURL(courseID)+"/files", nil)
}

// IsTextual reports whether a file's content can be indexed as text.
func (f File) IsTextual() bool {
	if strings.HasPrefix(f.ContentType, "text/") {
		return true
	}
	lower := strings.ToLower(f.DisplayName)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".txt")
}

// IsMarkdown reports whether a file should get markdown-aware chunking.
func (f File) IsMarkdown() bool {
	return f.ContentType == "text/markdown" ||
		strings.HasSuffix(strings.ToLower(f.DisplayName), ".md")
}

// FetchFileText downloads a file's body when it is textual, capped at
// maxFileBytes. Non-textual files yield an empty string, which the indexer
// skips silently.
func (c *Client) FetchFileText(ctx context.Context, f File) (string, error) {
	if !f.IsTextual() || f.URL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build file request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode, string(body), f.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes))
	if err != nil {
		return "", fmt.Errorf("read file %s: %w", f.DisplayName, err)
	}
	return string(body), nil
}
