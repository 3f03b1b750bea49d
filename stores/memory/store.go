package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"photobooth/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements every records interface in memory.
type memStore struct {
	mu         sync.RWMutex
	categories map[string]*core.Category
	frames     map[string]*core.Frame
	stickers   map[string]*core.Sticker
	formals    map[string]*core.Formal
	photos     map[string]*core.Photo
	users      map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		categories: make(map[string]*core.Category),
		frames:     make(map[string]*core.Frame),
		stickers:   make(map[string]*core.Sticker),
		formals:    make(map[string]*core.Formal),
		photos:     make(map[string]*core.Photo),
		users:      make(map[string]*core.User),
	}
}

// stamp fills ID and timestamps the way every Save does.
func stamp(id *string, createdAt, updatedAt *time.Time, existing *time.Time) {
	now := time.Now()
	if *id == "" {
		*id = ulid.Make().String()
	}
	if existing != nil {
		*createdAt = *existing
	} else {
		*createdAt = now
	}
	*updatedAt = now
}

func newestFirst[T any](items []T, createdAt func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}

// Categories

func (s *memStore) ListCategories(ctx context.Context) ([]*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	newestFirst(out, func(c *core.Category) time.Time { return c.CreatedAt })
	return out, nil
}

func (s *memStore) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		logrus.WithField("category_id", id).Warn("Category not found")
		return nil, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) SaveCategory(ctx context.Context, category *core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.categories {
		if id != category.ID && strings.EqualFold(c.Name, category.Name) {
			return fmt.Errorf("category name %q: %w", category.Name, core.ErrConflict)
		}
	}
	var existing *time.Time
	if category.ID != "" {
		if c, ok := s.categories[category.ID]; ok {
			existing = &c.CreatedAt
		}
	}
	stamp(&category.ID, &category.CreatedAt, &category.UpdatedAt, existing)
	cp := *category
	s.categories[category.ID] = &cp
	logrus.WithField("category_id", category.ID).Info("Category saved successfully")
	return nil
}

func (s *memStore) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	for _, f := range s.frames {
		if f.CategoryID == id {
			return fmt.Errorf("category %s is used by frames: %w", id, core.ErrConflict)
		}
	}
	for _, st := range s.stickers {
		if st.CategoryID == id {
			return fmt.Errorf("category %s is used by stickers: %w", id, core.ErrConflict)
		}
	}
	delete(s.categories, id)
	logrus.WithField("category_id", id).Info("Category deleted successfully")
	return nil
}

// Frames

func (s *memStore) ListFrames(ctx context.Context) ([]*core.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Frame, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, copyFrame(f))
	}
	newestFirst(out, func(f *core.Frame) time.Time { return f.CreatedAt })
	return out, nil
}

func (s *memStore) GetFrame(ctx context.Context, id string) (*core.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.frames[id]
	if !ok {
		logrus.WithField("frame_id", id).Warn("Frame not found")
		return nil, fmt.Errorf("frame %s: %w", id, core.ErrNotFound)
	}
	return copyFrame(f), nil
}

func (s *memStore) SaveFrame(ctx context.Context, frame *core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[frame.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", frame.CategoryID, core.ErrInvalid)
	}
	var existing *time.Time
	if frame.ID != "" {
		if f, ok := s.frames[frame.ID]; ok {
			existing = &f.CreatedAt
		}
	}
	stamp(&frame.ID, &frame.CreatedAt, &frame.UpdatedAt, existing)
	s.frames[frame.ID] = copyFrame(frame)
	logrus.WithFields(logrus.Fields{
		"frame_id":     frame.ID,
		"placeholders": len(frame.Placeholders),
	}).Info("Frame saved successfully")
	return nil
}

func (s *memStore) DeleteFrame(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.frames[id]; !ok {
		return fmt.Errorf("frame %s: %w", id, core.ErrNotFound)
	}
	delete(s.frames, id)
	logrus.WithField("frame_id", id).Info("Frame deleted successfully")
	return nil
}

func copyFrame(f *core.Frame) *core.Frame {
	cp := *f
	cp.Placeholders = append(cp.Placeholders[:0:0], f.Placeholders...)
	return &cp
}

// Stickers

func (s *memStore) ListStickers(ctx context.Context) ([]*core.Sticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Sticker, 0, len(s.stickers))
	for _, st := range s.stickers {
		cp := *st
		out = append(out, &cp)
	}
	newestFirst(out, func(st *core.Sticker) time.Time { return st.CreatedAt })
	return out, nil
}

func (s *memStore) GetSticker(ctx context.Context, id string) (*core.Sticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stickers[id]
	if !ok {
		logrus.WithField("sticker_id", id).Warn("Sticker not found")
		return nil, fmt.Errorf("sticker %s: %w", id, core.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (s *memStore) SaveSticker(ctx context.Context, sticker *core.Sticker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[sticker.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", sticker.CategoryID, core.ErrInvalid)
	}
	var existing *time.Time
	if sticker.ID != "" {
		if st, ok := s.stickers[sticker.ID]; ok {
			existing = &st.CreatedAt
		}
	}
	stamp(&sticker.ID, &sticker.CreatedAt, &sticker.UpdatedAt, existing)
	cp := *sticker
	s.stickers[sticker.ID] = &cp
	logrus.WithField("sticker_id", sticker.ID).Info("Sticker saved successfully")
	return nil
}

func (s *memStore) DeleteSticker(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stickers[id]; !ok {
		return fmt.Errorf("sticker %s: %w", id, core.ErrNotFound)
	}
	delete(s.stickers, id)
	logrus.WithField("sticker_id", id).Info("Sticker deleted successfully")
	return nil
}

// Formals

func (s *memStore) ListFormals(ctx context.Context) ([]*core.Formal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.Formal, 0, len(s.formals))
	for _, f := range s.formals {
		out = append(out, copyFormal(f))
	}
	newestFirst(out, func(f *core.Formal) time.Time { return f.CreatedAt })
	return out, nil
}

func (s *memStore) GetFormal(ctx context.Context, id string) (*core.Formal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.formals[id]
	if !ok {
		logrus.WithField("formal_id", id).Warn("Formal template not found")
		return nil, fmt.Errorf("formal %s: %w", id, core.ErrNotFound)
	}
	return copyFormal(f), nil
}

func (s *memStore) SaveFormal(ctx context.Context, formal *core.Formal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *time.Time
	if formal.ID != "" {
		if f, ok := s.formals[formal.ID]; ok {
			existing = &f.CreatedAt
		}
	}
	stamp(&formal.ID, &formal.CreatedAt, &formal.UpdatedAt, existing)
	s.formals[formal.ID] = copyFormal(formal)
	logrus.WithField("formal_id", formal.ID).Info("Formal template saved successfully")
	return nil
}

func (s *memStore) DeleteFormal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.formals[id]; !ok {
		return fmt.Errorf("formal %s: %w", id, core.ErrNotFound)
	}
	delete(s.formals, id)
	return nil
}

func copyFormal(f *core.Formal) *core.Formal {
	cp := *f
	cp.Sizes = append(cp.Sizes[:0:0], f.Sizes...)
	return &cp
}

// Photos

func (s *memStore) CreatePhoto(ctx context.Context, photo *core.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	photo.ID = ulid.Make().String()
	photo.CreatedAt = time.Now()
	cp := *photo
	s.photos[photo.ID] = &cp
	logrus.WithFields(logrus.Fields{
		"photo_id": photo.ID,
		"user_id":  photo.UserID,
		"type":     photo.Type,
	}).Info("Photo created successfully")
	return nil
}

func (s *memStore) ListPhotos(ctx context.Context, userID string) ([]*core.Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*core.Photo{}
	for _, p := range s.photos {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	newestFirst(out, func(p *core.Photo) time.Time { return p.CreatedAt })
	logrus.WithField("user_id", userID).Infof("Listed %d photos", len(out))
	return out, nil
}

// Users

func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("email %s: %w", user.Email, core.ErrConflict)
		}
	}
	s.insertUser(user)
	return nil
}

func (s *memStore) insertUser(user *core.User) {
	if user.Role == "" {
		user.Role = core.RoleUser
	}
	user.ID = ulid.Make().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	s.users[user.ID] = &cp
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User created successfully")
}

func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, core.ErrNotFound)
}

func (s *memStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.bySubject(subject); u != nil {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user with subject %s: %w", subject, core.ErrNotFound)
}

func (s *memStore) bySubject(subject string) *core.User {
	for _, u := range s.users {
		if u.Subject == subject {
			return u
		}
	}
	return nil
}

func (s *memStore) UpsertOAuthUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.bySubject(user.Subject)
	if user.Email != "" {
		for _, other := range s.users {
			if other != u && strings.EqualFold(other.Email, user.Email) {
				return fmt.Errorf("email %s: %w", user.Email, core.ErrConflict)
			}
		}
	}
	if u == nil {
		s.insertUser(user)
		return nil
	}
	u.Email = user.Email
	u.Name = user.Name
	u.AvatarURL = user.AvatarURL
	u.UpdatedAt = time.Now()
	*user = *u
	return nil
}

// Stats counts regular users, catalog items and saved photos.
func (s *memStore) Stats(ctx context.Context) (*core.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &core.Stats{
		TotalFrames:   len(s.frames),
		TotalStickers: len(s.stickers),
		TotalFormals:  len(s.formals),
		TotalPhotos:   len(s.photos),
	}
	for _, u := range s.users {
		if u.Role == core.RoleUser {
			stats.TotalUsers++
		}
	}
	return stats, nil
}
