package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/notely/internal/models"
	"github.com/charlesng35/notely/internal/services"
	"github.com/charlesng35/notely/pkg/response"
)

// NoteService is the per-account note store behind the /api/notes routes.
type NoteService interface {
	List(ctx context.Context, accountID string) ([]models.Note, error)
	Get(ctx context.Context, accountID, noteID string) (*models.Note, error)
	Create(ctx context.Context, accountID string, input services.NoteInput) (*models.Note, error)
	Update(ctx context.Context, accountID, noteID string, input services.NoteInput) (*models.Note, error)
	Delete(ctx context.Context, accountID, noteID string) error
	TogglePin(ctx context.Context, accountID, noteID string) (*models.Note, error)
}

// NoteHandler serves the signed-in account's notes.
type NoteHandler struct {
	svc NoteService
}

// NewNoteHandler constructs a NoteHandler.
func NewNoteHandler(svc NoteService) (*NoteHandler, error) {
	if svc == nil {
		return nil, errors.New("note handler: service is required")
	}
	return &NoteHandler{svc: svc}, nil
}

type noteRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=200"`
	Content *string `json:"content" validate:"omitempty,max=20000"`
}

type noteDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toNoteDTO(note *models.Note) noteDTO {
	return noteDTO{
		ID:        note.ID,
		Title:     note.Title,
		Content:   note.Content,
		Pinned:    note.Pinned,
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}

// GET /api/notes
func (h *NoteHandler) List(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	notes, err := h.svc.List(requestContext(c), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]noteDTO, 0, len(notes))
	for i := range notes {
		out = append(out, toNoteDTO(&notes[i]))
	}
	response.Success(c, http.StatusOK, gin.H{"notes": out})
}

// GET /api/notes/:id
func (h *NoteHandler) Get(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	note, err := h.svc.Get(requestContext(c), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"note": toNoteDTO(note)})
}

// POST /api/notes
func (h *NoteHandler) Create(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req noteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.svc.Create(requestContext(c), accountID, services.NoteInput{Title: req.Title, Content: req.Content})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"note": toNoteDTO(note)})
}

// PUT /api/notes/:id
func (h *NoteHandler) Update(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req noteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	note, err := h.svc.Update(requestContext(c), accountID, c.Param("id"), services.NoteInput{Title: req.Title, Content: req.Content})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"note": toNoteDTO(note)})
}

// DELETE /api/notes/:id
func (h *NoteHandler) Delete(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.Delete(requestContext(c), accountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Note deleted")
}

// PATCH /api/notes/:id/pin
func (h *NoteHandler) TogglePin(c *gin.Context) {
	accountID, err := currentAccountID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	note, err := h.svc.TogglePin(requestContext(c), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"note": toNoteDTO(note)})
}
