package models

import "time"

// Operator is a dashboard user allowed to read run summaries and
// trigger verification runs manually.
type Operator struct {
	ID             int64     `db:"id" json:"id"`
	GoogleID       string    `db:"google_id" json:"google_id"`
	Email          string    `db:"email" json:"email"`
	Name           string    `db:"name" json:"name"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type ApiKey struct {
	ID         int64     `db:"id" json:"id"`
	OperatorID int64     `db:"operator_id" json:"operator_id"`
	ApiKey     string    `db:"api_key" json:"api_key"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
