package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/later/internal/middleware"
	"github.com/hitoshi/later/internal/model"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	AddNote(ctx context.Context, userID, itemID, text string) (*model.ItemNote, error)
	SearchByURL(ctx context.Context, userID, urlPart string) ([]*model.ItemNote, error)
	SearchByTag(ctx context.Context, userID, tag string) ([]*model.ItemNote, error)
	List(ctx context.Context, userID string, from, size int) ([]*model.ItemNote, error)
}

// NoteHandler はメモのHTTPハンドラー。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

type addNoteRequest struct {
	ItemID string `json:"item_id"`
	Text   string `json:"text"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	ItemURL   string    `json:"item_url,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type noteListResponse struct {
	Notes []noteResponse `json:"notes"`
}

func toNoteResponse(n *model.ItemNote) noteResponse {
	return noteResponse{
		ID:        n.ID,
		ItemID:    n.ItemID,
		ItemURL:   n.ItemURL,
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
	}
}

// AddNote はアイテムにメモを追加する。
// POST /notes
func (h *NoteHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.ItemID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("item_idを指定してください。"))
		return
	}

	note, err := h.service.AddNote(r.Context(), userID, req.ItemID, req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toNoteResponse(note))
}

// ListNotes はメモを検索または一覧する。
// GET /notes?url=xxx, GET /notes?tag=xxx, GET /notes?from=0&size=20
// urlとtagが両方指定された場合はurlを優先する。
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q := r.URL.Query()
	var notes []*model.ItemNote
	switch {
	case q.Has("url"):
		notes, err = h.service.SearchByURL(r.Context(), userID, q.Get("url"))
	case q.Has("tag"):
		notes, err = h.service.SearchByTag(r.Context(), userID, q.Get("tag"))
	default:
		from, size, perr := parsePage(q.Get("from"), q.Get("size"))
		if perr != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, perr)
			return
		}
		notes, err = h.service.List(r.Context(), userID, from, size)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := noteListResponse{Notes: make([]noteResponse, len(notes))}
	for i, n := range notes {
		resp.Notes[i] = toNoteResponse(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

// parsePage はページ番号とページサイズを解析する。未指定は0。
func parsePage(fromStr, sizeStr string) (int, int, *model.APIError) {
	var from, size int
	var err error
	if fromStr != "" {
		if from, err = strconv.Atoi(fromStr); err != nil {
			return 0, 0, model.NewInvalidRequestError("fromは整数で指定してください。")
		}
	}
	if sizeStr != "" {
		if size, err = strconv.Atoi(sizeStr); err != nil {
			return 0, 0, model.NewInvalidRequestError("sizeは整数で指定してください。")
		}
	}
	return from, size, nil
}
