package stores

import (
	"context"
	"errors"
	"fmt"
	"os"

	"photobooth/compose"
	"photobooth/core"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type (
	// SeedFile is the YAML document applied at startup.
	SeedFile struct {
		Admin      *SeedAdmin     `yaml:"admin"`
		Categories []SeedCategory `yaml:"categories"`
		Frames     []SeedFrame    `yaml:"frames"`
		Stickers   []SeedSticker  `yaml:"stickers"`
		Formals    []SeedFormal   `yaml:"formals"`
	}

	SeedAdmin struct {
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	}

	SeedCategory struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	}

	SeedFrame struct {
		ID           string                `yaml:"id"`
		Name         string                `yaml:"name"`
		CategoryID   string                `yaml:"categoryId"`
		ImageURL     string                `yaml:"imageUrl"`
		Placeholders []compose.Placeholder `yaml:"placeholders"`
	}

	SeedSticker struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		CategoryID string `yaml:"categoryId"`
		ImageURL   string `yaml:"imageUrl"`
	}

	SeedFormal struct {
		ID            string         `yaml:"id"`
		Name          string         `yaml:"name"`
		BackgroundURL string         `yaml:"backgroundUrl"`
		Sizes         []compose.Size `yaml:"sizes"`
	}
)

// LoadSeed parses a YAML seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Seed applies seed to store. Catalog entries are upserted by ID and the
// admin account is only created when its email is unknown, so running it on
// every start is safe.
func Seed(ctx context.Context, store Store, seed *SeedFile) error {
	if seed.Admin != nil {
		if err := seedAdmin(ctx, store, seed.Admin); err != nil {
			return err
		}
	}
	for _, c := range seed.Categories {
		if err := store.SaveCategory(ctx, &core.Category{ID: c.ID, Name: c.Name, Description: c.Description}); err != nil {
			return fmt.Errorf("seed category %s: %w", c.ID, err)
		}
	}
	for _, f := range seed.Frames {
		frame := &core.Frame{ID: f.ID, Name: f.Name, CategoryID: f.CategoryID, ImageURL: f.ImageURL, Placeholders: f.Placeholders}
		if err := store.SaveFrame(ctx, frame); err != nil {
			return fmt.Errorf("seed frame %s: %w", f.ID, err)
		}
	}
	for _, s := range seed.Stickers {
		if err := store.SaveSticker(ctx, &core.Sticker{ID: s.ID, Name: s.Name, CategoryID: s.CategoryID, ImageURL: s.ImageURL}); err != nil {
			return fmt.Errorf("seed sticker %s: %w", s.ID, err)
		}
	}
	for _, f := range seed.Formals {
		if err := store.SaveFormal(ctx, &core.Formal{ID: f.ID, Name: f.Name, BackgroundURL: f.BackgroundURL, Sizes: f.Sizes}); err != nil {
			return fmt.Errorf("seed formal %s: %w", f.ID, err)
		}
	}
	logrus.WithFields(logrus.Fields{
		"categories": len(seed.Categories),
		"frames":     len(seed.Frames),
		"stickers":   len(seed.Stickers),
		"formals":    len(seed.Formals),
	}).Info("Seed applied")
	return nil
}

func seedAdmin(ctx context.Context, store Store, admin *SeedAdmin) error {
	_, err := store.FindUserByEmail(ctx, admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &core.User{
		Subject:      "local:" + admin.Email,
		Email:        admin.Email,
		Name:         admin.Name,
		PasswordHash: string(hash),
		Role:         core.RoleAdmin,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logrus.WithField("email", admin.Email).Info("Admin user created")
	return nil
}
