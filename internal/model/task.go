package model

import "time"

const MaxTextLength = 100

// Task is a single to-do item. IsDeleted and OwnerID are storage-only and never serialized.
type Task struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Completed bool       `json:"completed"`
	IsDeleted bool       `json:"-"`
	OwnerID   string     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// TaskPatch carries the fields supplied to an update. Nil means "not supplied".
type TaskPatch struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Text == nil && p.Completed == nil
}

// Scope identifies the caller every persistence call runs as.
type Scope struct {
	OwnerID string
	Token   string
}
