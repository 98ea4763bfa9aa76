package model

import "strings"

// ReadState はアイテム一覧の既読状態フィルタを表す。
type ReadState string

const (
	// ReadStateAll は既読・未読を問わない。
	ReadStateAll ReadState = "all"
	// ReadStateUnread は未読のみ。
	ReadStateUnread ReadState = "unread"
	// ReadStateRead は既読のみ。
	ReadStateRead ReadState = "read"
)

// ContentFilter はアイテム一覧のコンテンツ種別フィルタを表す。
type ContentFilter string

const (
	// ContentFilterAll は種別を問わない。
	ContentFilterAll ContentFilter = "all"
	// ContentFilterArticle はテキスト（記事）のみ。
	ContentFilterArticle ContentFilter = "article"
	// ContentFilterImage は画像のみ。
	ContentFilterImage ContentFilter = "image"
	// ContentFilterVideo は動画のみ。
	ContentFilterVideo ContentFilter = "video"
)

// SortOrder はアイテム一覧の並び順を表す。
type SortOrder string

const (
	// SortNewest は解決日時の新しい順。
	SortNewest SortOrder = "newest"
	// SortOldest は解決日時の古い順。
	SortOldest SortOrder = "oldest"
	// SortTitle はタイトルの昇順。
	SortTitle SortOrder = "title"
)

// ItemQuery はアイテム一覧取得の条件を表す。リクエストごとに生成し変更しない。
type ItemQuery struct {
	UserID      string
	State       ReadState
	ContentType ContentFilter
	Tags        []string // いずれかを含むもの（OR）
	Sort        SortOrder
	Limit       int
}

// ParseReadState は文字列をReadStateに変換する。大文字小文字は区別しない。
func ParseReadState(s string) (ReadState, error) {
	switch v := ReadState(strings.ToLower(s)); v {
	case ReadStateAll, ReadStateUnread, ReadStateRead:
		return v, nil
	}
	return "", NewInvalidFilterError("state=" + s)
}

// ParseContentFilter は文字列をContentFilterに変換する。大文字小文字は区別しない。
func ParseContentFilter(s string) (ContentFilter, error) {
	switch v := ContentFilter(strings.ToLower(s)); v {
	case ContentFilterAll, ContentFilterArticle, ContentFilterImage, ContentFilterVideo:
		return v, nil
	}
	return "", NewInvalidFilterError("contentType=" + s)
}

// ParseSortOrder は文字列をSortOrderに変換する。大文字小文字は区別しない。
func ParseSortOrder(s string) (SortOrder, error) {
	switch v := SortOrder(strings.ToLower(s)); v {
	case SortNewest, SortOldest, SortTitle:
		return v, nil
	}
	return "", NewInvalidFilterError("sort=" + s)
}
