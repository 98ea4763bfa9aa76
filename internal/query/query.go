// Package query はアイテム一覧の絞り込み条件と並び順を組み立てる。
//
// 各フィルタ軸（所有者・既読状態・コンテンツ種別・タグ）は独立に任意の条件へ変換され、
// 存在する条件のAND結合が1つの述語になる。述語はリポジトリでSQLに変換されるほか、
// Matchによりメモリ上でも評価できる。
package query

import (
	"sort"
	"strings"

	"github.com/hitoshi/later/internal/model"
)

// Kind は条件の種類を表す。
type Kind int

const (
	// KindOwner は所有者の一致条件。
	KindOwner Kind = iota
	// KindUnread は未読フラグの一致条件。
	KindUnread
	// KindMimeType はMIME分類ラベルの一致条件（大文字小文字を区別しない）。
	KindMimeType
	// KindAnyTag は指定タグのいずれかを持つ条件。
	KindAnyTag
)

// Condition は述語を構成する1つの条件。Kindに応じて使うフィールドが決まる。
type Condition struct {
	Kind   Kind
	Value  string   // KindOwner, KindMimeType
	Unread bool     // KindUnread
	Tags   []string // KindAnyTag
}

// Match はアイテムが条件を満たすかを判定する。
func (c Condition) Match(item *model.Item) bool {
	switch c.Kind {
	case KindOwner:
		return item.UserID == c.Value
	case KindUnread:
		return item.Unread == c.Unread
	case KindMimeType:
		return strings.EqualFold(item.MimeType, c.Value)
	case KindAnyTag:
		return item.HasAnyTag(c.Tags)
	}
	return false
}

// Predicate は条件のAND結合。
type Predicate []Condition

// Match はアイテムが全ての条件を満たすかを判定する。
func (p Predicate) Match(item *model.Item) bool {
	for _, c := range p {
		if !c.Match(item) {
			return false
		}
	}
	return true
}

// Order は並び順を表す。
type Order int

const (
	// OrderNone は並び順を指定しない。
	OrderNone Order = iota
	// OrderDateResolvedDesc は解決日時の降順。
	OrderDateResolvedDesc
	// OrderDateResolvedAsc は解決日時の昇順。
	OrderDateResolvedAsc
	// OrderTitleAsc はタイトルの昇順。
	OrderTitleAsc
)

// Query は述語・並び順・件数上限の組。Limitが0の場合は上限なし。
type Query struct {
	Predicate Predicate
	Order     Order
	Limit     int
}

// Build はItemQueryから述語・並び順・件数上限を組み立てる。
// 値がallや空の軸は条件を生成しない。
func Build(spec model.ItemQuery) Query {
	p := Predicate{{Kind: KindOwner, Value: spec.UserID}}

	switch spec.State {
	case model.ReadStateUnread:
		p = append(p, Condition{Kind: KindUnread, Unread: true})
	case model.ReadStateRead:
		p = append(p, Condition{Kind: KindUnread, Unread: false})
	}

	switch spec.ContentType {
	case model.ContentFilterArticle:
		p = append(p, Condition{Kind: KindMimeType, Value: string(model.ContentClassText)})
	case model.ContentFilterImage:
		p = append(p, Condition{Kind: KindMimeType, Value: string(model.ContentClassImage)})
	case model.ContentFilterVideo:
		p = append(p, Condition{Kind: KindMimeType, Value: string(model.ContentClassVideo)})
	}

	if tags := model.NormalizeTags(spec.Tags); len(tags) > 0 {
		p = append(p, Condition{Kind: KindAnyTag, Tags: tags})
	}

	var order Order
	switch spec.Sort {
	case model.SortNewest:
		order = OrderDateResolvedDesc
	case model.SortOldest:
		order = OrderDateResolvedAsc
	case model.SortTitle:
		order = OrderTitleAsc
	}

	return Query{Predicate: p, Order: order, Limit: spec.Limit}
}

// AnyTag は所有者かつ指定タグのいずれかを持つアイテムを、並び順・件数上限なしで取得するQueryを返す。
// tagsが空の場合はどのアイテムにも一致しない。
func AnyTag(userID string, tags []string) Query {
	return Query{Predicate: Predicate{
		{Kind: KindOwner, Value: userID},
		{Kind: KindAnyTag, Tags: model.NormalizeTags(tags)},
	}}
}

// Apply はQueryをメモリ上のアイテム列に適用する。元のスライスは変更しない。
func (q Query) Apply(items []*model.Item) []*model.Item {
	out := make([]*model.Item, 0, len(items))
	for _, it := range items {
		if q.Predicate.Match(it) {
			out = append(out, it)
		}
	}

	switch q.Order {
	case OrderDateResolvedDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DateResolved.After(out[j].DateResolved) })
	case OrderDateResolvedAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].DateResolved.Before(out[j].DateResolved) })
	case OrderTitleAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
