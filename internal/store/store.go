// Package store persists assignment records, user accounts and token usage.
// Two assignment backends satisfy the same contract: Postgres and a
// file-mirrored in-process map for local runs.
package store

import (
	"context"
	"database/sql"
	"time"
)

var ErrNotFound = sql.ErrNoRows

// InputKind classifies how the problem entered the system.
type InputKind string

const (
	InputText  InputKind = "text"
	InputImage InputKind = "image"
	InputPDF   InputKind = "pdf"
	InputDoc   InputKind = "doc"
)

// Assignment is one processed request. Records are written once at
// request-completion time and never mutated.
//
// A record with a FileName came from a file upload; a record with InputText
// and no FileName came from direct text entry.
type Assignment struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId,omitempty"`    // 0 = anonymous
	SessionID     string    `json:"sessionId,omitempty"` // anonymous path
	InputText     string    `json:"inputText,omitempty"`
	InputKind     InputKind `json:"inputKind"`
	FileName      string    `json:"fileName,omitempty"`
	ExtractedText string    `json:"extractedText,omitempty"`
	Provider      string    `json:"llmProvider"`
	Response      string    `json:"llmResponse,omitempty"`
	ChartData     []string  `json:"chartData,omitempty"`
	ChartImages   []string  `json:"chartImages,omitempty"`
	ProcessingMS  int64     `json:"processingTime"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AssignmentStore is the recorder contract shared by both backends.
//
// Owner isolation is mandatory: with owner > 0, Get and List must never
// surface a record belonging to a different user, even on an id match.
// Owner 0 means no filter for Get and "records with no owner" for List.
type AssignmentStore interface {
	Create(ctx context.Context, a *Assignment) error
	Get(ctx context.Context, id, owner int64) (*Assignment, error)
	List(ctx context.Context, owner int64) ([]Assignment, error)

	// PurgeTextEntries deletes records that have no source file name.
	// This is the only deletion path.
	PurgeTextEntries(ctx context.Context, owner int64) (int64, error)

	Close() error
}

// User holds a token balance for the credits model.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	TokenBalance int64     `json:"tokenBalance"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DailyUsage is one additive accounting row per owner key and date.
type DailyUsage struct {
	OwnerKey         string    `json:"ownerKey"` // "user:<id>" or "session:<uuid>"
	Day              time.Time `json:"day"`
	Requests         int64     `json:"requests"`
	PromptTokens     int64     `json:"promptTokens"`
	CompletionTokens int64     `json:"completionTokens"`
}
