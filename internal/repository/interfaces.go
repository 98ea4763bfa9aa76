// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/query"
)

// ErrDuplicate は一意制約違反を表す。
// itemsの(user_id, resolved_url)やusersのemailの重複時に返される。
var ErrDuplicate = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。emailが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// List は登録日時の昇順でユーザー一覧を返す。
	List(ctx context.Context) ([]*model.User, error)
}

// ItemRepository はアイテムデータの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// FindByUserAndResolvedURL は所有者と解決済みURLでアイテムを検索する。
	// 重複判定に使用する。見つからない場合はnilを返す。
	FindByUserAndResolvedURL(ctx context.Context, userID, resolvedURL string) (*model.Item, error)

	// Create は新規アイテムを作成する。
	// (user_id, resolved_url)が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, item *model.Item) error

	// Update は既読状態・タグを更新する。メタデータは更新しない。
	Update(ctx context.Context, item *model.Item) error

	// DeleteByUserAndID は所有者とIDが一致するアイテムを削除する。
	// 一致するアイテムがない場合は何もしない。
	DeleteByUserAndID(ctx context.Context, userID, id string) error

	// Find は述語・並び順・件数上限に従ってアイテムを取得する。
	Find(ctx context.Context, q query.Query) ([]*model.Item, error)
}

// NoteRepository はアイテムメモの永続化インターフェース。
type NoteRepository interface {
	// Create はメモを作成する。
	Create(ctx context.Context, note *model.ItemNote) error

	// SearchByURL は所有者のアイテムのうち、URLに指定文字列を含むもののメモを返す。
	SearchByURL(ctx context.Context, userID, urlPart string) ([]*model.ItemNote, error)

	// SearchByTag は所有者のアイテムのうち、指定タグを持つもののメモを返す。
	SearchByTag(ctx context.Context, userID, tag string) ([]*model.ItemNote, error)

	// ListByUser は所有者のメモを作成日時の昇順でoffset/limit指定で返す。
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.ItemNote, error)
}
