// Package model はドメインモデルを定義する。
package model

import (
	"sort"
	"strings"
	"time"
)

// Item はユーザーが保存したURL（リーディングリストの1件）を表す。
// (UserID, ResolvedURL) の組はユーザー内で一意。
type Item struct {
	ID           string
	UserID       string
	URL          string // ユーザーが入力した元のURL
	ResolvedURL  string // リダイレクト追跡後の最終URL
	MimeType     string // 分類ラベル: text, image, video
	Title        string
	HasImage     bool
	HasVideo     bool
	DateResolved time.Time
	Unread       bool
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContentClass はURLの解決結果として得られるコンテンツ分類を表す。
type ContentClass string

const (
	// ContentClassText はテキスト（HTML等）コンテンツ。
	ContentClassText ContentClass = "text"
	// ContentClassImage は画像コンテンツ。
	ContentClassImage ContentClass = "image"
	// ContentClassVideo は動画コンテンツ。
	ContentClassVideo ContentClass = "video"
)

// URLMetadata はURL解決の結果を表す。保存もキャッシュもされない一時的な値。
type URLMetadata struct {
	NormalURL    string
	ResolvedURL  string
	MimeType     ContentClass
	Title        string
	HasImage     bool
	HasVideo     bool
	DateResolved time.Time
}

// ItemEdit はアイテム編集の内容を表す。
// Unreadがnilの場合は既読状態を変更しない。
// ReplaceTagsがtrueの場合はタグを置き換え、falseの場合は和集合をとる。
type ItemEdit struct {
	ID          string
	Unread      *bool
	Tags        []string
	ReplaceTags bool
}

// NormalizeTags はタグ集合を空白除去・重複排除・ソート済みにして返す。
// 空文字のタグは捨てる。
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// UnionTags は2つのタグ集合の和集合を返す。
func UnionTags(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return NormalizeTags(merged)
}

// HasAnyTag はアイテムが指定タグのいずれかを持つかを判定する。
func (i *Item) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range i.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
