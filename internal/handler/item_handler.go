package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/later/internal/middleware"
	"github.com/hitoshi/later/internal/model"
)

// ItemServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// AddItem はURLを解決してアイテムを登録する。同じ解決済みURLが登録済みならタグを併合する。
	AddItem(ctx context.Context, userID, rawURL string, tags []string) (*model.Item, error)
	// EditItem はアイテムの既読状態とタグを更新する。
	EditItem(ctx context.Context, userID string, edit model.ItemEdit) error
	// DeleteItem は所有者とIDが一致するアイテムを削除する。
	DeleteItem(ctx context.Context, userID, itemID string) error
	// ListItems は条件に一致するアイテムを返す。
	ListItems(ctx context.Context, spec model.ItemQuery) ([]*model.Item, error)
	// ItemsByAnyTag は指定タグのいずれかを持つアイテムを返す。
	ItemsByAnyTag(ctx context.Context, userID string, tags []string) ([]*model.Item, error)
}

// ItemHandler はアイテム管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

// addItemRequest はアイテム登録リクエストのボディ。
type addItemRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// editItemRequest はアイテム編集リクエストのボディ。
type editItemRequest struct {
	ID          string   `json:"id"`
	Unread      *bool    `json:"unread,omitempty"`
	Tags        []string `json:"tags"`
	ReplaceTags bool     `json:"replace_tags"`
}

// itemResponse はアイテムのレスポンス。
type itemResponse struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	ResolvedURL  string    `json:"resolved_url"`
	MimeType     string    `json:"mime_type"`
	Title        string    `json:"title"`
	HasImage     bool      `json:"has_image"`
	HasVideo     bool      `json:"has_video"`
	DateResolved time.Time `json:"date_resolved"`
	Unread       bool      `json:"unread"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// itemListResponse はアイテム一覧のレスポンス。
type itemListResponse struct {
	Items []itemResponse `json:"items"`
}

func toItemResponse(item *model.Item) itemResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return itemResponse{
		ID:           item.ID,
		URL:          item.URL,
		ResolvedURL:  item.ResolvedURL,
		MimeType:     item.MimeType,
		Title:        item.Title,
		HasImage:     item.HasImage,
		HasVideo:     item.HasVideo,
		DateResolved: item.DateResolved,
		Unread:       item.Unread,
		Tags:         tags,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

func toItemListResponse(items []*model.Item) itemListResponse {
	resp := itemListResponse{Items: make([]itemResponse, len(items))}
	for i, item := range items {
		resp.Items[i] = toItemResponse(item)
	}
	return resp
}

// AddItem はURLを解決してアイテムを登録する。
// POST /items
func (h *ItemHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	item, err := h.service.AddItem(r.Context(), userID, req.URL, req.Tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

// ListItems はフィルタと並び順を指定してアイテム一覧を取得する。
// GET /items?state=unread&contentType=all&sort=newest&limit=10&tags=a&tags=b
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	spec, err := parseItemQuery(userID, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items, err := h.service.ListItems(r.Context(), spec)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemListResponse(items))
}

// ItemsByTags は指定タグのいずれかを持つアイテムを取得する。tagは必須。
// GET /items/by-tags?tag=a&tag=b
func (h *ItemHandler) ItemsByTags(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	tags := model.NormalizeTags(r.URL.Query()["tag"])
	if len(tags) == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("tagを1つ以上指定してください。"))
		return
	}

	items, err := h.service.ItemsByAnyTag(r.Context(), userID, tags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemListResponse(items))
}

// EditItem はアイテムの既読状態とタグを更新する。
// PATCH /items
func (h *ItemHandler) EditItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req editItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}
	if req.ID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("idを指定してください。"))
		return
	}

	err = h.service.EditItem(r.Context(), userID, model.ItemEdit{
		ID:          req.ID,
		Unread:      req.Unread,
		Tags:        req.Tags,
		ReplaceTags: req.ReplaceTags,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteItem はアイテムを削除する。所有者が異なる場合も204を返す。
// DELETE /items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.DeleteItem(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseItemQuery はクエリパラメータからItemQueryを組み立てる。
// 未指定の項目は state=unread, contentType=all, sort=newest とする。
func parseItemQuery(userID string, r *http.Request) (model.ItemQuery, error) {
	q := r.URL.Query()
	spec := model.ItemQuery{
		UserID:      userID,
		State:       model.ReadStateUnread,
		ContentType: model.ContentFilterAll,
		Sort:        model.SortNewest,
		Tags:        q["tags"],
	}

	if v := q.Get("state"); v != "" {
		state, err := model.ParseReadState(v)
		if err != nil {
			return spec, err
		}
		spec.State = state
	}
	if v := q.Get("contentType"); v != "" {
		ct, err := model.ParseContentFilter(v)
		if err != nil {
			return spec, err
		}
		spec.ContentType = ct
	}
	if v := q.Get("sort"); v != "" {
		order, err := model.ParseSortOrder(v)
		if err != nil {
			return spec, err
		}
		spec.Sort = order
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return spec, model.NewInvalidFilterError("limit=" + v)
		}
		spec.Limit = limit
	}

	return spec, nil
}
