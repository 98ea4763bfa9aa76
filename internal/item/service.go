// Package item はリーディングリストのアイテム管理機能を提供する。
package item

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/query"
	"github.com/hitoshi/later/internal/repository"
)

// URLResolver はURLを解決してメタデータを返すインターフェース。
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) (*model.URLMetadata, error)
}

// Recorder は取り込み結果のメトリクスを記録するインターフェース。
// outcomeは "created", "merged", "unchanged" のいずれか。
type Recorder interface {
	RecordIngest(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngest(string) {}

// 取り込み結果の種類。
const (
	OutcomeCreated   = "created"
	OutcomeMerged    = "merged"
	OutcomeUnchanged = "unchanged"
)

// ListConfig は一覧取得の件数設定。
type ListConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// Service はアイテムの取り込み・編集・削除・一覧取得を行うサービス。
// 同一所有者・同一解決済みURLのアイテムは1件にまとめ、
// メタデータは最初の解決結果を保持し、タグは和集合をとる。
type Service struct {
	userRepo repository.UserRepository
	itemRepo repository.ItemRepository
	resolver URLResolver
	recorder Recorder
	list     ListConfig

	now   func() time.Time
	newID func() string
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	itemRepo repository.ItemRepository,
	resolver URLResolver,
	recorder Recorder,
	list ListConfig,
) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if list.DefaultLimit <= 0 {
		list.DefaultLimit = 10
	}
	if list.MaxLimit < list.DefaultLimit {
		list.MaxLimit = list.DefaultLimit
	}
	return &Service{
		userRepo: userRepo,
		itemRepo: itemRepo,
		resolver: resolver,
		recorder: recorder,
		list:     list,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// AddItem はURLを解決してアイテムとして保存する。
// 同じ解決済みURLのアイテムが既にあれば、タグを和集合で追加して既存アイテムを返す。
// 所有者が存在しない場合はネットワークアクセス前にUSER_NOT_FOUNDを返す。
// 解決に失敗した場合は何も保存しない。
func (s *Service) AddItem(ctx context.Context, userID, rawURL string, tags []string) (*model.Item, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	meta, err := s.resolver.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	tags = model.NormalizeTags(tags)

	existing, err := s.itemRepo.FindByUserAndResolvedURL(ctx, userID, meta.ResolvedURL)
	if err != nil {
		return nil, fmt.Errorf("アイテムの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return s.mergeTags(ctx, existing, tags)
	}

	now := s.now()
	item := &model.Item{
		ID:           s.newID(),
		UserID:       userID,
		URL:          meta.NormalURL,
		ResolvedURL:  meta.ResolvedURL,
		MimeType:     string(meta.MimeType),
		Title:        meta.Title,
		HasImage:     meta.HasImage,
		HasVideo:     meta.HasVideo,
		DateResolved: meta.DateResolved,
		Unread:       true,
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("アイテムの作成に失敗しました: %w", err)
		}

		// 検索と作成の間に同じURLが登録された。既存アイテムへのマージに切り替える。
		existing, err := s.itemRepo.FindByUserAndResolvedURL(ctx, userID, meta.ResolvedURL)
		if err != nil {
			return nil, fmt.Errorf("アイテムの再検索に失敗しました: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("重複したアイテムが見つかりません: %s", meta.ResolvedURL)
		}
		slog.Info("同時登録を検出したため既存アイテムにマージします",
			slog.String("user_id", userID),
			slog.String("item_id", existing.ID),
			slog.String("resolved_url", meta.ResolvedURL),
		)
		return s.mergeTags(ctx, existing, tags)
	}

	s.recorder.RecordIngest(OutcomeCreated)
	slog.Info("アイテムを登録しました",
		slog.String("user_id", userID),
		slog.String("item_id", item.ID),
		slog.String("resolved_url", item.ResolvedURL),
		slog.String("mime_type", item.MimeType),
	)
	return item, nil
}

// mergeTags は既存アイテムにタグを追加する。タグが空の場合は何も更新しない。
func (s *Service) mergeTags(ctx context.Context, existing *model.Item, tags []string) (*model.Item, error) {
	if len(tags) == 0 {
		s.recorder.RecordIngest(OutcomeUnchanged)
		return existing, nil
	}

	existing.Tags = model.UnionTags(existing.Tags, tags)
	existing.UpdatedAt = s.now()
	if err := s.itemRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("アイテムの更新に失敗しました: %w", err)
	}

	s.recorder.RecordIngest(OutcomeMerged)
	slog.Info("既存アイテムにタグを追加しました",
		slog.String("user_id", existing.UserID),
		slog.String("item_id", existing.ID),
		slog.Any("tags", existing.Tags),
	)
	return existing, nil
}

// EditItem はアイテムの既読状態とタグを更新する。
// 既読状態はedit.Unreadが指定された場合のみ上書きする。
// タグはReplaceTagsがtrueなら置き換え、falseなら和集合をとる。
func (s *Service) EditItem(ctx context.Context, userID string, edit model.ItemEdit) error {
	// UUID形式でないIDに一致するアイテムは存在しない
	if _, err := uuid.Parse(edit.ID); err != nil {
		return model.NewItemNotFoundError(edit.ID)
	}

	item, err := s.itemRepo.FindByID(ctx, edit.ID)
	if err != nil {
		return fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	if item == nil {
		return model.NewItemNotFoundError(edit.ID)
	}
	if item.UserID != userID {
		slog.Warn("他ユーザーのアイテムの編集を拒否しました",
			slog.String("user_id", userID),
			slog.String("item_id", edit.ID),
		)
		return model.NewAccessForbiddenError()
	}

	if edit.Unread != nil {
		item.Unread = *edit.Unread
	}
	if edit.ReplaceTags {
		item.Tags = model.NormalizeTags(edit.Tags)
	} else {
		item.Tags = model.UnionTags(item.Tags, edit.Tags)
	}
	item.UpdatedAt = s.now()

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return fmt.Errorf("アイテムの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteItem は所有者とIDが一致するアイテムを削除する。
// 一致しない場合やIDがUUID形式でない場合は何もしない。
func (s *Service) DeleteItem(ctx context.Context, userID, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return nil
	}
	if err := s.itemRepo.DeleteByUserAndID(ctx, userID, itemID); err != nil {
		return fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}
	return nil
}

// ListItems は条件に一致するアイテムを返す。
// Limitが0以下の場合はデフォルト件数、上限を超える場合は上限件数に丸める。
func (s *Service) ListItems(ctx context.Context, spec model.ItemQuery) ([]*model.Item, error) {
	switch {
	case spec.Limit <= 0:
		spec.Limit = s.list.DefaultLimit
	case spec.Limit > s.list.MaxLimit:
		spec.Limit = s.list.MaxLimit
	}

	items, err := s.itemRepo.Find(ctx, query.Build(spec))
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// ItemsByAnyTag は指定タグのいずれかを持つ所有者のアイテムを返す。並び順と件数の制限はない。
func (s *Service) ItemsByAnyTag(ctx context.Context, userID string, tags []string) ([]*model.Item, error) {
	items, err := s.itemRepo.Find(ctx, query.AnyTag(userID, tags))
	if err != nil {
		return nil, fmt.Errorf("タグによるアイテム検索に失敗しました: %w", err)
	}
	return items, nil
}

func (s *Service) ensureUser(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	return nil
}
