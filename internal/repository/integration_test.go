package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/later/internal/database"
	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/query"
)

// setupIntegrationDB はPostgreSQLコンテナを起動してマイグレーションを適用する。
// TEST_INTEGRATION が未設定の場合はスキップする。
func setupIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("統合テストをスキップ: TEST_INTEGRATION が設定されていません")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("later_test"),
		postgres.WithUsername("later"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("PostgreSQLコンテナの起動に失敗: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("コンテナの停止に失敗: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("接続文字列の取得に失敗: %v", err)
	}

	if err := database.RunMigrations(dsn); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(dsn, database.PoolConfig{})
	if err != nil {
		t.Fatalf("DB接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

func createTestUser(t *testing.T, repo *PostgresUserRepo, email string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		ID:               uuid.New().String(),
		Email:            email,
		FirstName:        "Taro",
		LastName:         "Yamada",
		RegistrationDate: now,
		State:            model.UserStateActive,
		CreatedAt:        now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("ユーザー作成に失敗: %v", err)
	}
	return u
}

func newTestItem(userID, resolvedURL, mime string, unread bool, resolvedAt time.Time, tags ...string) *model.Item {
	return &model.Item{
		ID:           uuid.New().String(),
		UserID:       userID,
		URL:          resolvedURL,
		ResolvedURL:  resolvedURL,
		MimeType:     mime,
		Title:        resolvedURL,
		DateResolved: resolvedAt,
		Unread:       unread,
		Tags:         model.NormalizeTags(tags),
		CreatedAt:    resolvedAt,
		UpdatedAt:    resolvedAt,
	}
}

// TestIntegration_UserRepo はユーザーの作成・取得・一覧・メール重複をテストする。
func TestIntegration_UserRepo(t *testing.T) {
	db := setupIntegrationDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	u := createTestUser(t, repo, "taro@example.com")

	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got == nil || got.Email != u.Email || got.State != model.UserStateActive {
		t.Fatalf("FindByID = %+v", got)
	}

	missing, err := repo.FindByID(ctx, uuid.New().String())
	if err != nil || missing != nil {
		t.Errorf("存在しないユーザーは nil, nil を返すべき: %v, %v", missing, err)
	}

	dup := *u
	dup.ID = uuid.New().String()
	if err := repo.Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("メール重複は ErrDuplicate を返すべき: %v", err)
	}

	users, err := repo.List(ctx)
	if err != nil || len(users) != 1 {
		t.Errorf("List = %d件, err=%v", len(users), err)
	}
}

// TestIntegration_ItemRepo_CreateFindUpdateDelete はアイテムのCRUDと一意制約をテストする。
func TestIntegration_ItemRepo_CreateFindUpdateDelete(t *testing.T) {
	db := setupIntegrationDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresItemRepo(db)
	ctx := context.Background()

	owner := createTestUser(t, users, "owner@example.com")
	other := createTestUser(t, users, "other@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	item := newTestItem(owner.ID, "https://example.com/page/", "text", true, now, "x")
	if err := repo.Create(ctx, item); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := newTestItem(owner.ID, "https://example.com/page/", "text", true, now)
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("(user_id, resolved_url) 重複は ErrDuplicate を返すべき: %v", err)
	}

	found, err := repo.FindByUserAndResolvedURL(ctx, owner.ID, "https://example.com/page/")
	if err != nil || found == nil || found.ID != item.ID {
		t.Fatalf("FindByUserAndResolvedURL = %+v, %v", found, err)
	}

	found.Tags = model.UnionTags(found.Tags, []string{"y"})
	found.Unread = false
	found.Title = "changed"
	found.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, found); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := repo.FindByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if reloaded.Unread || len(reloaded.Tags) != 2 {
		t.Errorf("更新が反映されていない: %+v", reloaded)
	}
	if reloaded.Title != item.Title {
		t.Errorf("Update はメタデータを変更しないはず: title=%q", reloaded.Title)
	}

	if err := repo.DeleteByUserAndID(ctx, other.ID, item.ID); err != nil {
		t.Fatalf("他ユーザーによる削除はエラーにならないはず: %v", err)
	}
	if still, _ := repo.FindByID(ctx, item.ID); still == nil {
		t.Fatal("他ユーザーによる削除でアイテムが消えてはいけない")
	}

	if err := repo.DeleteByUserAndID(ctx, owner.ID, item.ID); err != nil {
		t.Fatalf("DeleteByUserAndID: %v", err)
	}
	if gone, _ := repo.FindByID(ctx, item.ID); gone != nil {
		t.Error("削除後もアイテムが残っている")
	}
}

// TestIntegration_ItemRepo_Find は合成された述語・並び順・上限がSQLで正しく評価されることをテストする。
func TestIntegration_ItemRepo_Find(t *testing.T) {
	db := setupIntegrationDB(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresItemRepo(db)
	ctx := context.Background()

	owner := createTestUser(t, users, "finder@example.com")
	other := createTestUser(t, users, "someone@example.com")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []*model.Item{
		newTestItem(owner.ID, "https://a/1", "text", true, base.Add(1*time.Hour), "go"),
		newTestItem(owner.ID, "https://a/2", "image", true, base.Add(2*time.Hour), "db"),
		newTestItem(owner.ID, "https://a/3", "TEXT", false, base.Add(3*time.Hour)),
		newTestItem(owner.ID, "https://a/4", "text", true, base.Add(4*time.Hour), "db", "go"),
		newTestItem(owner.ID, "https://a/5", "text", true, base.Add(5*time.Hour)),
		newTestItem(other.ID, "https://a/6", "text", true, base.Add(6*time.Hour), "go"),
	}
	for _, it := range fixtures {
		if err := repo.Create(ctx, it); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.Find(ctx, query.Build(model.ItemQuery{
		UserID:      owner.ID,
		State:       model.ReadStateUnread,
		ContentType: model.ContentFilterArticle,
		Sort:        model.SortNewest,
		Limit:       2,
	}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 || got[0].ResolvedURL != "https://a/5" || got[1].ResolvedURL != "https://a/4" {
		t.Errorf("未読記事の新しい順が不正: %v", resolvedURLs(got))
	}

	got, err = repo.Find(ctx, query.Build(model.ItemQuery{
		UserID: owner.ID,
		State:  model.ReadStateAll,
		Tags:   []string{"db", "go"},
		Sort:   model.SortOldest,
		Limit:  10,
	}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if fmt.Sprint(resolvedURLs(got)) != "[https://a/1 https://a/2 https://a/4]" {
		t.Errorf("タグOR検索が不正: %v", resolvedURLs(got))
	}

	got, err = repo.Find(ctx, query.AnyTag(owner.ID, []string{"go"}))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("AnyTag の件数 = %d, want 2", len(got))
	}
}

// TestIntegration_NoteRepo はメモの作成と各種検索をテストする。
func TestIntegration_NoteRepo(t *testing.T) {
	db := setupIntegrationDB(t)
	users := NewPostgresUserRepo(db)
	items := NewPostgresItemRepo(db)
	notes := NewPostgresNoteRepo(db)
	ctx := context.Background()

	owner := createTestUser(t, users, "notes@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)
	item := newTestItem(owner.ID, "https://blog.example.com/post_1", "text", true, now, "reading")
	if err := items.Create(ctx, item); err != nil {
		t.Fatalf("Create item: %v", err)
	}

	for i := 0; i < 3; i++ {
		n := &model.ItemNote{
			ID:        uuid.New().String(),
			ItemID:    item.ID,
			Text:      fmt.Sprintf("memo %d", i),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		if err := notes.Create(ctx, n); err != nil {
			t.Fatalf("Create note: %v", err)
		}
	}

	byURL, err := notes.SearchByURL(ctx, owner.ID, "post_1")
	if err != nil || len(byURL) != 3 {
		t.Errorf("SearchByURL = %d件, err=%v", len(byURL), err)
	}
	if len(byURL) > 0 && byURL[0].ItemURL != item.URL {
		t.Errorf("ItemURL = %q", byURL[0].ItemURL)
	}

	// "_" はワイルドカードとして扱われない
	if none, _ := notes.SearchByURL(ctx, owner.ID, "post__"); len(none) != 0 {
		t.Errorf("LIKEメタ文字がエスケープされていない: %d件", len(none))
	}

	byTag, err := notes.SearchByTag(ctx, owner.ID, "reading")
	if err != nil || len(byTag) != 3 {
		t.Errorf("SearchByTag = %d件, err=%v", len(byTag), err)
	}

	page, err := notes.ListByUser(ctx, owner.ID, 1, 1)
	if err != nil || len(page) != 1 || page[0].Text != "memo 1" {
		t.Errorf("ListByUser = %+v, err=%v", page, err)
	}
}

func resolvedURLs(items []*model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ResolvedURL
	}
	return out
}
