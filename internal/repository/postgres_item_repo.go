package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/query"
	"github.com/lib/pq"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

const itemColumns = `id, user_id, url, resolved_url, mime_type, title, has_image, has_video,
		        date_resolved, unread, tags, created_at, updated_at`

func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var title sql.NullString
	var tags pq.StringArray
	if err := s.Scan(
		&item.ID, &item.UserID, &item.URL, &item.ResolvedURL, &item.MimeType,
		&title, &item.HasImage, &item.HasVideo,
		&item.DateResolved, &item.Unread, &tags, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	item.Title = nullStringValue(title)
	item.Tags = []string(tags)
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return item, nil
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アイテムの取得に失敗しました: %w", err)
	}
	return item, nil
}

// FindByUserAndResolvedURL は所有者と解決済みURLでアイテムを検索する。
func (r *PostgresItemRepo) FindByUserAndResolvedURL(ctx context.Context, userID, resolvedURL string) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE user_id = $1 AND resolved_url = $2`,
		userID, resolvedURL,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolved_url によるアイテムの検索に失敗しました: %w", err)
	}
	return item, nil
}

// Create は新規アイテムを作成する。
// (user_id, resolved_url)の一意制約に違反した場合はErrDuplicateを返す。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, user_id, url, resolved_url, mime_type, title, has_image, has_video,
		                    date_resolved, unread, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, item.UserID, item.URL, item.ResolvedURL, item.MimeType,
		nullString(item.Title), item.HasImage, item.HasVideo,
		item.DateResolved, item.Unread, pq.Array(item.Tags), item.CreatedAt, item.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("アイテムの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既読状態とタグを上書き更新する。メタデータ列は変更しない。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET unread = $2, tags = $3, updated_at = $4 WHERE id = $1`,
		item.ID, item.Unread, pq.Array(item.Tags), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アイテムの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserAndID は所有者とIDが一致するアイテムを削除する。
// 一致しない場合も成功として扱う。
func (r *PostgresItemRepo) DeleteByUserAndID(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("アイテムの削除に失敗しました: %w", err)
	}
	return nil
}

// Find は述語・並び順・件数上限に従ってアイテムを取得する。
func (r *PostgresItemRepo) Find(ctx context.Context, q query.Query) ([]*model.Item, error) {
	where, args := buildItemWhere(q.Predicate)

	baseQuery := `SELECT ` + itemColumns + ` FROM items WHERE ` + where
	baseQuery += buildItemOrderBy(q.Order)
	if q.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("アイテム一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("アイテム行の読み取りに失敗しました: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アイテム一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// buildItemWhere は述語をパラメータ化されたWHERE句に変換する。
// 条件が1つもない場合は常に真となる句を返す。
func buildItemWhere(p query.Predicate) (string, []any) {
	var conds []string
	var args []any
	argIndex := 1

	for _, c := range p {
		switch c.Kind {
		case query.KindOwner:
			conds = append(conds, fmt.Sprintf("user_id = $%d", argIndex))
			args = append(args, c.Value)
		case query.KindUnread:
			conds = append(conds, fmt.Sprintf("unread = $%d", argIndex))
			args = append(args, c.Unread)
		case query.KindMimeType:
			conds = append(conds, fmt.Sprintf("lower(mime_type) = lower($%d)", argIndex))
			args = append(args, c.Value)
		case query.KindAnyTag:
			// tags && ARRAY[...] : いずれかのタグを含む（GINインデックス対象）
			conds = append(conds, fmt.Sprintf("tags && $%d", argIndex))
			args = append(args, pq.Array(c.Tags))
		default:
			continue
		}
		argIndex++
	}

	if len(conds) == 0 {
		return "TRUE", nil
	}
	return strings.Join(conds, " AND "), args
}

// buildItemOrderBy は並び順をORDER BY句に変換する。列名は固定値のみ。
func buildItemOrderBy(o query.Order) string {
	switch o {
	case query.OrderDateResolvedDesc:
		return " ORDER BY date_resolved DESC, id"
	case query.OrderDateResolvedAsc:
		return " ORDER BY date_resolved ASC, id"
	case query.OrderTitleAsc:
		return " ORDER BY title ASC NULLS LAST, id"
	default:
		return ""
	}
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
