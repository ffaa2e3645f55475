package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/notely/internal/models"
	appErrors "github.com/charlesng35/notely/pkg/errors"
)

// NoteInput carries the editable fields of a note. Nil fields are left unchanged on update.
type NoteInput struct {
	Title   *string
	Content *string
}

// NoteService manages notes scoped to their owning account.
type NoteService struct {
	db *gorm.DB
}

// NewNoteService constructs a NoteService.
func NewNoteService(db *gorm.DB) (*NoteService, error) {
	if db == nil {
		return nil, errors.New("note service: db is required")
	}
	return &NoteService{db: db}, nil
}

// List returns the account's notes, newest first.
func (s *NoteService) List(ctx context.Context, accountID string) ([]models.Note, error) {
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("note service: list: %w", err)
	}
	return notes, nil
}

// Get loads a single note. Notes owned by another account are reported as not found.
func (s *NoteService) Get(ctx context.Context, accountID, noteID string) (*models.Note, error) {
	var note models.Note
	err := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", noteID, accountID).
		Take(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNoteNotFound
		}
		return nil, fmt.Errorf("note service: get: %w", err)
	}
	return &note, nil
}

// Create stores a new note. Title and content are both required.
func (s *NoteService) Create(ctx context.Context, accountID string, input NoteInput) (*models.Note, error) {
	title, content := trimmed(input.Title), trimmed(input.Content)
	if title == "" || content == "" {
		return nil, appErrors.ErrNoteInvalid
	}

	note := models.Note{
		AccountID: accountID,
		Title:     title,
		Content:   content,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, fmt.Errorf("note service: create: %w", err)
	}
	return &note, nil
}

// Update changes the supplied fields of a note. A supplied field may not be blank.
func (s *NoteService) Update(ctx context.Context, accountID, noteID string, input NoteInput) (*models.Note, error) {
	updates := map[string]any{}
	if input.Title != nil {
		if trimmed(input.Title) == "" {
			return nil, appErrors.ErrNoteInvalid
		}
		updates["title"] = trimmed(input.Title)
	}
	if input.Content != nil {
		if trimmed(input.Content) == "" {
			return nil, appErrors.ErrNoteInvalid
		}
		updates["content"] = trimmed(input.Content)
	}

	note, err := s.Get(ctx, accountID, noteID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return note, nil
	}

	if err := s.db.WithContext(ctx).Model(note).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("note service: update: %w", err)
	}
	return s.Get(ctx, accountID, noteID)
}

// Delete removes a note owned by the account.
func (s *NoteService) Delete(ctx context.Context, accountID, noteID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", noteID, accountID).
		Delete(&models.Note{})
	if result.Error != nil {
		return fmt.Errorf("note service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrNoteNotFound
	}
	return nil
}

// TogglePin flips the pinned flag of a note and returns the updated note.
func (s *NoteService) TogglePin(ctx context.Context, accountID, noteID string) (*models.Note, error) {
	note, err := s.Get(ctx, accountID, noteID)
	if err != nil {
		return nil, err
	}

	pinned := !note.Pinned
	if err := s.db.WithContext(ctx).Model(note).Update("pinned", pinned).Error; err != nil {
		return nil, fmt.Errorf("note service: toggle pin: %w", err)
	}
	note.Pinned = pinned
	return note, nil
}

func trimmed(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
