// Package comments manages the comments posted under boards.
package comments

import "time"

// Comment is a single comment with its author's public names.
type Comment struct {
	ID        int64     `json:"commentId"`
	BoardID   int64     `json:"boardId"`
	AuthorID  int64     `json:"-"`
	Content   string    `json:"content"`
	Nickname  string    `json:"nickname"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}
