// Package boards implements board posts: listing, detail, authoring and
// deletion together with their attachments.
package boards

import (
	"time"

	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/shared"
)

// Board is a stored post.
type Board struct {
	ID             int64
	Title          string
	Content        string
	AuthorID       int64
	AuthorSubject  string
	AuthorNickname string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary is a list row.
type Summary struct {
	ID        int64     `json:"boardId"`
	Title     string    `json:"title"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListQuery filters and pages the board list. Page is 1-based.
type ListQuery struct {
	Keyword string
	Page    int
	Size    int
}

// Page is one page of summaries. Number is 0-based.
type Page struct {
	Content       []Summary `json:"content"`
	Number        int       `json:"number"`
	Size          int       `json:"size"`
	TotalElements int       `json:"totalElements"`
	TotalPages    int       `json:"totalPages"`
}

func newPage(items []Summary, p shared.Pagination) Page {
	if items == nil {
		items = []Summary{}
	}
	return Page{
		Content:       items,
		Number:        p.Page - 1,
		Size:          p.PerPage,
		TotalElements: p.Total,
		TotalPages:    p.TotalPages,
	}
}

// FileView describes an attachment in a board detail.
type FileView struct {
	ID           int64  `json:"fileId"`
	OriginalName string `json:"originName"`
	StoredName   string `json:"storedName"`
	Size         int64  `json:"size"`
}

// Detail is the full view of a board.
type Detail struct {
	ID         int64              `json:"boardId"`
	Title      string             `json:"title"`
	Content    string             `json:"content"`
	Nickname   string             `json:"nickname"`
	Username   string             `json:"username"`
	CreatedAt  time.Time          `json:"createdAt"`
	ModifiedAt time.Time          `json:"modifiedAt"`
	Files      []FileView         `json:"fileList"`
	Comments   []comments.Comment `json:"commentList"`
}

func fileViews(records []attachments.Attachment) []FileView {
	out := make([]FileView, len(records))
	for i, a := range records {
		out[i] = FileView{ID: a.ID, OriginalName: a.OriginalName, StoredName: a.StoredName(), Size: a.SizeBytes}
	}
	return out
}

// Input carries the editable fields of a board.
type Input struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required"`
}
