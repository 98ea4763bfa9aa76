package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/later/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したアイテムメモリポジトリ。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

const noteSelect = `SELECT n.id, n.item_id, n.text, n.created_at, i.url, i.user_id
		 FROM item_notes n
		 JOIN items i ON i.id = n.item_id`

// Create はメモを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.ItemNote) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO item_notes (id, item_id, text, created_at) VALUES ($1, $2, $3, $4)`,
		note.ID, note.ItemID, note.Text, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メモの作成に失敗しました: %w", err)
	}
	return nil
}

// SearchByURL は所有者のアイテムのうち、URLに指定文字列を含むもののメモを返す。
func (r *PostgresNoteRepo) SearchByURL(ctx context.Context, userID, urlPart string) ([]*model.ItemNote, error) {
	return r.list(ctx,
		noteSelect+` WHERE i.user_id = $1 AND i.url LIKE $2 ESCAPE '\' ORDER BY n.created_at, n.id`,
		userID, "%"+escapeLike(urlPart)+"%",
	)
}

// SearchByTag は所有者のアイテムのうち、指定タグを持つもののメモを返す。
func (r *PostgresNoteRepo) SearchByTag(ctx context.Context, userID, tag string) ([]*model.ItemNote, error) {
	return r.list(ctx,
		noteSelect+` WHERE i.user_id = $1 AND $2 = ANY(i.tags) ORDER BY n.created_at, n.id`,
		userID, tag,
	)
}

// ListByUser は所有者のメモを作成日時の昇順でoffset/limit指定で返す。
func (r *PostgresNoteRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*model.ItemNote, error) {
	return r.list(ctx,
		noteSelect+` WHERE i.user_id = $1 ORDER BY n.created_at, n.id OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
}

func (r *PostgresNoteRepo) list(ctx context.Context, q string, args ...any) ([]*model.ItemNote, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	notes := []*model.ItemNote{}
	for rows.Next() {
		n := &model.ItemNote{}
		if err := rows.Scan(&n.ID, &n.ItemID, &n.Text, &n.CreatedAt, &n.ItemURL, &n.UserID); err != nil {
			return nil, fmt.Errorf("メモ行の読み取りに失敗しました: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メモ一覧の走査に失敗しました: %w", err)
	}
	return notes, nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
