package core

import (
	"context"
	"time"

	"photobooth/compose"
)

type (
	// Category groups frames and stickers in the catalog.
	Category struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// Frame is a decorative overlay with fixed photo slots.
	Frame struct {
		ID           string                `json:"id"`
		Name         string                `json:"name"`
		CategoryID   string                `json:"categoryId"`
		ImageURL     string                `json:"imageUrl"`
		Placeholders []compose.Placeholder `json:"placeholders"`
		CreatedAt    time.Time             `json:"createdAt"`
		UpdatedAt    time.Time             `json:"updatedAt"`
	}

	Sticker struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		CategoryID string    `json:"categoryId"`
		ImageURL   string    `json:"imageUrl"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	// Formal is a formal-photo template: a background plus the output sizes
	// it can be cropped to.
	Formal struct {
		ID            string         `json:"id"`
		Name          string         `json:"name"`
		BackgroundURL string         `json:"backgroundUrl"`
		Sizes         []compose.Size `json:"sizes"`
		CreatedAt     time.Time      `json:"createdAt"`
		UpdatedAt     time.Time      `json:"updatedAt"`
	}

	// CatalogStore persists the admin-managed catalog. Save assigns an ID when
	// it is empty and upserts otherwise, keeping CreatedAt of an existing row.
	// Frames and stickers must reference an existing category (ErrInvalid).
	// Lists are newest first.
	CatalogStore interface {
		ListCategories(ctx context.Context) ([]*Category, error)
		GetCategory(ctx context.Context, id string) (*Category, error)
		// SaveCategory fails with ErrConflict when another category has the same name.
		SaveCategory(ctx context.Context, category *Category) error
		// DeleteCategory fails with ErrConflict while frames or stickers reference it.
		DeleteCategory(ctx context.Context, id string) error

		ListFrames(ctx context.Context) ([]*Frame, error)
		GetFrame(ctx context.Context, id string) (*Frame, error)
		SaveFrame(ctx context.Context, frame *Frame) error
		DeleteFrame(ctx context.Context, id string) error

		ListStickers(ctx context.Context) ([]*Sticker, error)
		GetSticker(ctx context.Context, id string) (*Sticker, error)
		SaveSticker(ctx context.Context, sticker *Sticker) error
		DeleteSticker(ctx context.Context, id string) error

		ListFormals(ctx context.Context) ([]*Formal, error)
		GetFormal(ctx context.Context, id string) (*Formal, error)
		SaveFormal(ctx context.Context, formal *Formal) error
		DeleteFormal(ctx context.Context, id string) error
	}
)
