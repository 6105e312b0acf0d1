package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tip-gate-backend/internal/models"
	"tip-gate-backend/internal/repository"
)

// memViewerStore mirrors the unique (image, viewer) constraint and the
// Pending-only status update of the SQL repository.
type memViewerStore struct {
	mu      sync.Mutex
	records map[string]*models.ViewerState

	creates int
	updates int
	deletes int

	updateErr error
}

func newMemViewerStore() *memViewerStore {
	return &memViewerStore{records: map[string]*models.ViewerState{}}
}

func viewerKey(imageID, viewerFID string) string { return imageID + "|" + viewerFID }

func (s *memViewerStore) Find(_ context.Context, imageID, viewerFID string) (*models.ViewerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[viewerKey(imageID, viewerFID)]
	if !ok {
		return nil, fmt.Errorf("viewer not found: %w", repository.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *memViewerStore) Create(_ context.Context, imageID, viewerFID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := viewerKey(imageID, viewerFID)
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.creates++
	now := time.Now()
	s.records[key] = &models.ViewerState{
		ID:        fmt.Sprintf("row-%d", s.creates),
		ImageID:   imageID,
		ViewerFID: viewerFID,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func (s *memViewerStore) UpdateStatus(_ context.Context, imageID, viewerFID string, status models.ViewerStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	rec, ok := s.records[viewerKey(imageID, viewerFID)]
	if !ok || rec.Status != models.StatusPending {
		return false, nil
	}
	s.updates++
	rec.Status = status
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (s *memViewerStore) Delete(_ context.Context, imageID, viewerFID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.records, viewerKey(imageID, viewerFID))
	return nil
}

func (s *memViewerStore) DeleteStalePending(_ context.Context, imageID, viewerFID string, before time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := viewerKey(imageID, viewerFID)
	rec, ok := s.records[key]
	if !ok || rec.Status != models.StatusPending || !rec.UpdatedAt.Before(before) {
		return false, nil
	}
	s.deletes++
	delete(s.records, key)
	return true, nil
}

// snapshotFindStore serves Find from a fixed snapshot, as seen by a request
// that read the record before a concurrent request changed it.
type snapshotFindStore struct {
	*memViewerStore
	snapshot models.ViewerState
}

func (s *snapshotFindStore) Find(context.Context, string, string) (*models.ViewerState, error) {
	cp := s.snapshot
	return &cp, nil
}

func (s *memViewerStore) put(state models.ViewerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[viewerKey(state.ImageID, state.ViewerFID)] = &state
}

func (s *memViewerStore) status(imageID, viewerFID string) (models.ViewerStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[viewerKey(imageID, viewerFID)]
	if !ok {
		return "", false
	}
	return rec.Status, true
}

func (s *memViewerStore) mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates + s.updates + s.deletes
}

// fakeFeed serves canned hub feeds. When block is non-nil, GetReplies waits
// for it to close.
type fakeFeed struct {
	mu          sync.Mutex
	replies     []models.TipMessage
	casts       []models.TipMessage
	repliesErr  error
	castsErr    error
	block       chan struct{}
	repliesHits int
}

func (f *fakeFeed) GetReplies(_ context.Context, _ models.CastID) ([]models.TipMessage, error) {
	f.mu.Lock()
	f.repliesHits++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.replies, f.repliesErr
}

func (f *fakeFeed) GetAuthorCasts(_ context.Context, _ models.FID) ([]models.TipMessage, error) {
	return f.casts, f.castsErr
}

func (f *fakeFeed) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repliesHits
}

type fakeAllowances struct {
	allowance float64
	missing   bool
	err       error
}

func (a *fakeAllowances) GetAllowance(context.Context, models.FID) (float64, bool, error) {
	if a.err != nil {
		return 0, false, a.err
	}
	return a.allowance, !a.missing, nil
}

type memImageStore struct {
	images map[string]*models.Image
}

func (s *memImageStore) GetByID(_ context.Context, id string) (*models.Image, error) {
	img, ok := s.images[id]
	if !ok {
		return nil, fmt.Errorf("image not found: %w", repository.ErrNotFound)
	}
	cp := *img
	return &cp, nil
}

type recordingListener struct {
	mu      sync.Mutex
	changes []StatusChange
}

func (l *recordingListener) ViewerStatusChanged(_ context.Context, change StatusChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, change)
}

func (l *recordingListener) all() []StatusChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StatusChange(nil), l.changes...)
}

func (s *memImageStore) Create(_ context.Context, image *models.Image) error {
	if s.images == nil {
		s.images = map[string]*models.Image{}
	}
	cp := *image
	s.images[image.ID] = &cp
	return nil
}

func (s *memImageStore) MarkSolved(_ context.Context, id string) error {
	img, ok := s.images[id]
	if !ok {
		return fmt.Errorf("image not found: %w", repository.ErrNotFound)
	}
	img.IsSolved = true
	return nil
}

type fakeUsernames struct {
	name string
	err  error
}

func (u *fakeUsernames) GetUsername(context.Context, models.FID) (string, error) {
	return u.name, u.err
}

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}
