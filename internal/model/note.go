package model

import "time"

// ItemNote はアイテムに付けられたメモを表す。
type ItemNote struct {
	ID        string
	ItemID    string
	Text      string // サニタイズ済みのプレーンテキスト
	CreatedAt time.Time

	// 以下は検索結果表示用にitemsとJOINして取得する。
	ItemURL string
	UserID  string
}

// MaxNoteTextLength はメモ本文の最大文字数。
const MaxNoteTextLength = 2000
