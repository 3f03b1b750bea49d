package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"photobooth/compose"
	"photobooth/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		description TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS frames (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_id TEXT NOT NULL REFERENCES categories(id),
		image_url TEXT NOT NULL,
		placeholders TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS stickers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_id TEXT NOT NULL REFERENCES categories(id),
		image_url TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS formals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		background_url TEXT NOT NULL,
		sizes TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		url TEXT NOT NULL,
		type TEXT,
		item_id TEXT,
		created_at DATETIME
	);`,
	`CREATE INDEX IF NOT EXISTS photos_user ON photos (user_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL UNIQUE,
		email TEXT UNIQUE COLLATE NOCASE,
		name TEXT,
		avatar_url TEXT,
		password_hash TEXT,
		role TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	);`,
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}
	// modernc connections do not share an in-memory database.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err = db.Exec(stmt); err != nil {
			log.Fatalf("failed to create schema: %v", err)
		}
	}
	return &sqliteStore{db}
}

func (s *sqliteStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		logrus.WithField(kind+"_id", id).Warn("Record not found")
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return err
}

// upsertTimes assigns an ID if needed and returns the created and updated
// times to write, keeping created_at of an existing row.
func upsertTimes(ctx context.Context, tx *sql.Tx, table string, id *string) (time.Time, time.Time, error) {
	now := time.Now()
	if *id == "" {
		*id = ulid.Make().String()
		return now, now, nil
	}
	var created time.Time
	err := tx.QueryRowContext(ctx, "SELECT created_at FROM "+table+" WHERE id = ?", *id).Scan(&created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return now, now, nil
	case err != nil:
		return time.Time{}, time.Time{}, err
	}
	return created, now, nil
}

func (s *sqliteStore) categoryExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM categories WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("category %s: %w", id, core.ErrInvalid)
	}
	return err
}

// Categories

func scanCategory(row scanner) (*core.Category, error) {
	var c core.Category
	var desc sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &desc, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Description = desc.String
	return &c, nil
}

func (s *sqliteStore) ListCategories(ctx context.Context) ([]*core.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, created_at, updated_at FROM categories ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetCategory(ctx context.Context, id string) (*core.Category, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, description, created_at, updated_at FROM categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if err != nil {
		return nil, notFound(err, "category", id)
	}
	return c, nil
}

func (s *sqliteStore) SaveCategory(ctx context.Context, category *core.Category) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM categories WHERE name = ? AND id <> ?", category.Name, category.ID).Scan(&one)
	if err == nil {
		return fmt.Errorf("category name %q: %w", category.Name, core.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	created, updated, err := upsertTimes(ctx, tx, "categories", &category.ID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO categories (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, updated_at = excluded.updated_at`,
		category.ID, category.Name, category.Description, created, updated)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	category.CreatedAt, category.UpdatedAt = created, updated
	logrus.WithField("category_id", category.ID).Info("Category saved successfully")
	return nil
}

func (s *sqliteStore) DeleteCategory(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var used int
	err = tx.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(*) FROM frames WHERE category_id = ?) + (SELECT COUNT(*) FROM stickers WHERE category_id = ?)",
		id, id).Scan(&used)
	if err != nil {
		return err
	}
	if used > 0 {
		return fmt.Errorf("category %s is used by %d catalog items: %w", id, used, core.ErrConflict)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	logrus.WithField("category_id", id).Info("Category deleted successfully")
	return tx.Commit()
}

// Frames

const frameColumns = "id, name, category_id, image_url, placeholders, created_at, updated_at"

func scanFrame(row scanner) (*core.Frame, error) {
	var f core.Frame
	var placeholders sql.NullString
	if err := row.Scan(&f.ID, &f.Name, &f.CategoryID, &f.ImageURL, &placeholders, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Placeholders = []compose.Placeholder{}
	if placeholders.String != "" {
		if err := json.Unmarshal([]byte(placeholders.String), &f.Placeholders); err != nil {
			return nil, fmt.Errorf("failed to decode placeholders of frame %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

func (s *sqliteStore) ListFrames(ctx context.Context) ([]*core.Frame, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+frameColumns+" FROM frames ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Frame{}
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetFrame(ctx context.Context, id string) (*core.Frame, error) {
	f, err := scanFrame(s.db.QueryRowContext(ctx, "SELECT "+frameColumns+" FROM frames WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "frame", id)
	}
	return f, nil
}

func (s *sqliteStore) SaveFrame(ctx context.Context, frame *core.Frame) error {
	placeholders, err := json.Marshal(frame.Placeholders)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.categoryExists(ctx, tx, frame.CategoryID); err != nil {
		return err
	}
	created, updated, err := upsertTimes(ctx, tx, "frames", &frame.ID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO frames (`+frameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category_id = excluded.category_id,
		image_url = excluded.image_url, placeholders = excluded.placeholders, updated_at = excluded.updated_at`,
		frame.ID, frame.Name, frame.CategoryID, frame.ImageURL, string(placeholders), created, updated)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	frame.CreatedAt, frame.UpdatedAt = created, updated
	logrus.WithFields(logrus.Fields{
		"frame_id":     frame.ID,
		"placeholders": len(frame.Placeholders),
	}).Info("Frame saved successfully")
	return nil
}

func (s *sqliteStore) DeleteFrame(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "frames", "frame", id)
}

func (s *sqliteStore) deleteByID(ctx context.Context, table, kind, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	logrus.WithField(kind+"_id", id).Info("Record deleted successfully")
	return nil
}

// Stickers

const stickerColumns = "id, name, category_id, image_url, created_at, updated_at"

func scanSticker(row scanner) (*core.Sticker, error) {
	var st core.Sticker
	if err := row.Scan(&st.ID, &st.Name, &st.CategoryID, &st.ImageURL, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *sqliteStore) ListStickers(ctx context.Context) ([]*core.Sticker, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+stickerColumns+" FROM stickers ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Sticker{}
	for rows.Next() {
		st, err := scanSticker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetSticker(ctx context.Context, id string) (*core.Sticker, error) {
	st, err := scanSticker(s.db.QueryRowContext(ctx, "SELECT "+stickerColumns+" FROM stickers WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "sticker", id)
	}
	return st, nil
}

func (s *sqliteStore) SaveSticker(ctx context.Context, sticker *core.Sticker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.categoryExists(ctx, tx, sticker.CategoryID); err != nil {
		return err
	}
	created, updated, err := upsertTimes(ctx, tx, "stickers", &sticker.ID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO stickers (`+stickerColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category_id = excluded.category_id,
		image_url = excluded.image_url, updated_at = excluded.updated_at`,
		sticker.ID, sticker.Name, sticker.CategoryID, sticker.ImageURL, created, updated)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	sticker.CreatedAt, sticker.UpdatedAt = created, updated
	logrus.WithField("sticker_id", sticker.ID).Info("Sticker saved successfully")
	return nil
}

func (s *sqliteStore) DeleteSticker(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "stickers", "sticker", id)
}

// Formals

const formalColumns = "id, name, background_url, sizes, created_at, updated_at"

func scanFormal(row scanner) (*core.Formal, error) {
	var f core.Formal
	var sizes sql.NullString
	if err := row.Scan(&f.ID, &f.Name, &f.BackgroundURL, &sizes, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Sizes = []compose.Size{}
	if sizes.String != "" {
		if err := json.Unmarshal([]byte(sizes.String), &f.Sizes); err != nil {
			return nil, fmt.Errorf("failed to decode sizes of formal %s: %w", f.ID, err)
		}
	}
	return &f, nil
}

func (s *sqliteStore) ListFormals(ctx context.Context) ([]*core.Formal, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+formalColumns+" FROM formals ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Formal{}
	for rows.Next() {
		f, err := scanFormal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetFormal(ctx context.Context, id string) (*core.Formal, error) {
	f, err := scanFormal(s.db.QueryRowContext(ctx, "SELECT "+formalColumns+" FROM formals WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "formal", id)
	}
	return f, nil
}

func (s *sqliteStore) SaveFormal(ctx context.Context, formal *core.Formal) error {
	sizes, err := json.Marshal(formal.Sizes)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	created, updated, err := upsertTimes(ctx, tx, "formals", &formal.ID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO formals (`+formalColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, background_url = excluded.background_url,
		sizes = excluded.sizes, updated_at = excluded.updated_at`,
		formal.ID, formal.Name, formal.BackgroundURL, string(sizes), created, updated)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	formal.CreatedAt, formal.UpdatedAt = created, updated
	logrus.WithField("formal_id", formal.ID).Info("Formal template saved successfully")
	return nil
}

func (s *sqliteStore) DeleteFormal(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "formals", "formal", id)
}

// Photos

func (s *sqliteStore) CreatePhoto(ctx context.Context, photo *core.Photo) error {
	photo.ID = ulid.Make().String()
	photo.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, "INSERT INTO photos (id, user_id, url, type, item_id, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		photo.ID, photo.UserID, photo.URL, photo.Type, photo.ItemID, photo.CreatedAt)
	if err != nil {
		logrus.WithError(err).Error("Failed to create photo")
		return err
	}
	logrus.WithFields(logrus.Fields{
		"photo_id": photo.ID,
		"user_id":  photo.UserID,
		"type":     photo.Type,
	}).Info("Photo created successfully")
	return nil
}

func (s *sqliteStore) ListPhotos(ctx context.Context, userID string) ([]*core.Photo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, url, type, item_id, created_at FROM photos WHERE user_id = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*core.Photo{}
	for rows.Next() {
		p := core.Photo{UserID: userID}
		var typ, item sql.NullString
		if err := rows.Scan(&p.ID, &p.URL, &typ, &item, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Type, p.ItemID = typ.String, item.String
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Users

const userColumns = "id, subject, email, name, avatar_url, password_hash, role, created_at, updated_at"

func scanUser(row scanner) (*core.User, error) {
	var u core.User
	var email, name, avatar, hash sql.NullString
	if err := row.Scan(&u.ID, &u.Subject, &email, &name, &avatar, &hash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Email, u.Name, u.AvatarURL, u.PasswordHash = email.String, name.String, avatar.String, hash.String
	return &u, nil
}

func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email = ?", user.Email).Scan(&one)
	if err == nil {
		return fmt.Errorf("email %s: %w", user.Email, core.ErrConflict)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}
	return tx.Commit()
}

func insertUser(ctx context.Context, tx *sql.Tx, user *core.User) error {
	if user.Role == "" {
		user.Role = core.RoleUser
	}
	user.ID = ulid.Make().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	var email sql.NullString
	if user.Email != "" {
		email = sql.NullString{String: user.Email, Valid: true}
	}
	_, err := tx.ExecContext(ctx, "INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Subject, email, user.Name, user.AvatarURL, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User created successfully")
	return nil
}

func (s *sqliteStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return u, nil
}

func (s *sqliteStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE subject = ?", subject))
	if err != nil {
		return nil, notFound(err, "user", subject)
	}
	return u, nil
}

// UpsertOAuthUser fails with ErrConflict when the email belongs to another
// account, local or OAuth.
func (s *sqliteStore) UpsertOAuthUser(ctx context.Context, user *core.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE subject = ?", user.Subject))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if user.Email != "" {
		var ownID string
		if existing != nil {
			ownID = existing.ID
		}
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email = ? AND id != ?", user.Email, ownID).Scan(&one)
		switch {
		case err == nil:
			return fmt.Errorf("email %s: %w", user.Email, core.ErrConflict)
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
	}
	if existing == nil {
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		return tx.Commit()
	}

	existing.Email, existing.Name, existing.AvatarURL = user.Email, user.Name, user.AvatarURL
	existing.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx, "UPDATE users SET email = ?, name = ?, avatar_url = ?, updated_at = ? WHERE id = ?",
		existing.Email, existing.Name, existing.AvatarURL, existing.UpdatedAt, existing.ID)
	if err != nil {
		return err
	}
	*user = *existing
	return tx.Commit()
}

func (s *sqliteStore) Stats(ctx context.Context) (*core.Stats, error) {
	var st core.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM users WHERE role = ?),
		(SELECT COUNT(*) FROM frames),
		(SELECT COUNT(*) FROM stickers),
		(SELECT COUNT(*) FROM formals),
		(SELECT COUNT(*) FROM photos)`, core.RoleUser).
		Scan(&st.TotalUsers, &st.TotalFrames, &st.TotalStickers, &st.TotalFormals, &st.TotalPhotos)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
