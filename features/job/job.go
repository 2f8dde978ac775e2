package job

import "time"

// Job is a narration that failed to generate and can be retried.
type Job struct {
	ID        string    `json:"id"`
	PostID    string    `json:"postId"`
	Error     string    `json:"error"`
	Retries   int       `json:"retries"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
