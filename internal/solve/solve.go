// Package solve runs the per-request pipeline:
// received → (extract if file) → dispatch to provider → persist → respond.
// Any stage failure short-circuits; no partial record is ever persisted.
package solve

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"taskmate/internal/llm"
	"taskmate/internal/render"
	"taskmate/internal/store"
	"taskmate/internal/util"
)

// Extractor is satisfied by extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType, filename string) (string, error)
}

// Dispatcher is satisfied by llm.Dispatcher.
type Dispatcher interface {
	Complete(ctx context.Context, p llm.Provider, text string) (llm.Completion, error)
}

// UsageRecorder is satisfied by store.UsageRepo; nil disables accounting.
type UsageRecorder interface {
	Add(ctx context.Context, ownerKey string, day time.Time, promptTokens, completionTokens int64) error
}

// Identity names the request owner: an authenticated user, an anonymous
// session, or neither.
type Identity struct {
	UserID    int64
	SessionID string
}

func (id Identity) OwnerKey() string {
	switch {
	case id.UserID > 0:
		return "user:" + util.Itoa(id.UserID)
	case id.SessionID != "":
		return "session:" + id.SessionID
	}
	return "anon"
}

type Service struct {
	extractor  Extractor
	dispatcher Dispatcher
	store      store.AssignmentStore
	usage      UsageRecorder
}

func New(extractor Extractor, dispatcher Dispatcher, st store.AssignmentStore, usage UsageRecorder) *Service {
	return &Service{
		extractor:  extractor,
		dispatcher: dispatcher,
		store:      st,
		usage:      usage,
	}
}

// ProcessFile extracts text from an uploaded file, dispatches it and persists
// the completed record.
func (s *Service) ProcessFile(ctx context.Context, id Identity, provider llm.Provider, data []byte, mediaType, filename string) (*store.Assignment, error) {
	start := time.Now()

	text, err := s.extractor.Extract(ctx, data, mediaType, filename)
	if err != nil {
		return nil, err
	}

	a := &store.Assignment{
		UserID:        id.UserID,
		SessionID:     id.SessionID,
		InputKind:     kindForFile(mediaType, filename),
		FileName:      filename,
		ExtractedText: text,
		Provider:      string(provider),
	}
	return s.finish(ctx, id, provider, a, text, start)
}

// ProcessText dispatches typed problem text directly.
func (s *Service) ProcessText(ctx context.Context, id Identity, provider llm.Provider, text string) (*store.Assignment, error) {
	start := time.Now()

	a := &store.Assignment{
		UserID:        id.UserID,
		SessionID:     id.SessionID,
		InputKind:     store.InputText,
		InputText:     text,
		ExtractedText: text,
		Provider:      string(provider),
	}
	return s.finish(ctx, id, provider, a, text, start)
}

func (s *Service) finish(ctx context.Context, id Identity, provider llm.Provider, a *store.Assignment, text string, start time.Time) (*store.Assignment, error) {
	out, err := s.dispatcher.Complete(ctx, provider, text)
	if err != nil {
		return nil, err
	}

	a.Response = out.Text
	a.ChartData = render.ChartPayloads(out.Text)
	a.ProcessingMS = time.Since(start).Milliseconds()

	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}

	if s.usage != nil {
		day := time.Now().UTC().Truncate(24 * time.Hour)
		if err := s.usage.Add(ctx, id.OwnerKey(), day, int64(out.PromptTokens), int64(out.CompletionTokens)); err != nil {
			// accounting must not fail the request
			logrus.WithError(err).Warn("token usage accounting failed")
		}
	}

	logrus.WithFields(logrus.Fields{
		"id":       a.ID,
		"provider": provider,
		"owner":    id.OwnerKey(),
		"ms":       a.ProcessingMS,
	}).Info("assignment processed")
	return a, nil
}

func kindForFile(mediaType, filename string) store.InputKind {
	switch {
	case util.IsPDFType(mediaType):
		return store.InputPDF
	case util.IsWordType(mediaType, filename):
		return store.InputDoc
	}
	return store.InputImage
}
