// Package note はアイテムに付けるメモの管理機能を提供する。
package note

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/repository"
	"github.com/hitoshi/later/internal/security"
)

// デフォルトのページサイズと上限。
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service はメモの登録と検索を行うサービス。
type Service struct {
	itemRepo  repository.ItemRepository
	noteRepo  repository.NoteRepository
	sanitizer *security.TextSanitizer
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	itemRepo repository.ItemRepository,
	noteRepo repository.NoteRepository,
	sanitizer *security.TextSanitizer,
) *Service {
	return &Service{
		itemRepo:  itemRepo,
		noteRepo:  noteRepo,
		sanitizer: sanitizer,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// AddNote はアイテムにメモを追加する。
// 本文はHTMLを除去したプレーンテキストとして保存する。
func (s *Service) AddNote(ctx context.Context, userID, itemID, text string) (*model.ItemNote, error) {
	body := s.sanitizer.SanitizeText(text)
	if body == "" {
		return nil, model.NewInvalidRequestError("メモの本文は必須です")
	}
	if utf8.RuneCountInString(body) > model.MaxNoteTextLength {
		return nil, model.NewInvalidRequestError(
			fmt.Sprintf("メモの本文は%d文字以内で入力してください", model.MaxNoteTextLength))
	}

	if _, err := uuid.Parse(itemID); err != nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	if item.UserID != userID {
		return nil, model.NewAccessForbiddenError()
	}

	note := &model.ItemNote{
		ID:        s.newID(),
		ItemID:    item.ID,
		Text:      body,
		CreatedAt: s.now(),
		ItemURL:   item.URL,
		UserID:    item.UserID,
	}
	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("メモの作成に失敗しました: %w", err)
	}

	slog.Info("メモを追加しました",
		slog.String("user_id", userID),
		slog.String("item_id", item.ID),
		slog.String("note_id", note.ID),
	)
	return note, nil
}

// SearchByURL はURLに指定文字列を含むアイテムのメモを返す。
func (s *Service) SearchByURL(ctx context.Context, userID, urlPart string) ([]*model.ItemNote, error) {
	urlPart = strings.TrimSpace(urlPart)
	if urlPart == "" {
		return nil, model.NewInvalidRequestError("urlは必須です")
	}
	notes, err := s.noteRepo.SearchByURL(ctx, userID, urlPart)
	if err != nil {
		return nil, fmt.Errorf("URLによるメモ検索に失敗しました: %w", err)
	}
	return notes, nil
}

// SearchByTag は指定タグを持つアイテムのメモを返す。
func (s *Service) SearchByTag(ctx context.Context, userID, tag string) ([]*model.ItemNote, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, model.NewInvalidRequestError("tagは必須です")
	}
	notes, err := s.noteRepo.SearchByTag(ctx, userID, tag)
	if err != nil {
		return nil, fmt.Errorf("タグによるメモ検索に失敗しました: %w", err)
	}
	return notes, nil
}

// List は所有者のメモをページ単位で返す。fromは0始まりのページ番号。
// sizeが0以下の場合はDefaultPageSize、MaxPageSizeを超える場合はMaxPageSizeとする。
func (s *Service) List(ctx context.Context, userID string, from, size int) ([]*model.ItemNote, error) {
	if from < 0 {
		return nil, model.NewInvalidRequestError("fromは0以上で指定してください")
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	notes, err := s.noteRepo.ListByUser(ctx, userID, from*size, size)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	return notes, nil
}
