// Package model はドメインモデルを定義する。
package model

import "time"

// UserState はユーザーの状態を表す。
type UserState string

const (
	// UserStateActive は有効なユーザー。
	UserStateActive UserState = "ACTIVE"
	// UserStateBlocked は利用停止中のユーザー。
	UserStateBlocked UserState = "BLOCKED"
	// UserStateDeleted は削除済みのユーザー。
	UserStateDeleted UserState = "DELETED"
)

// User はリーディングリストの所有者を表す。
type User struct {
	ID               string
	Email            string
	FirstName        string
	LastName         string
	RegistrationDate time.Time
	State            UserState
	CreatedAt        time.Time
}
