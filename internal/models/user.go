package models

import "time"

// User is the profile of a registered grader
type User struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Experience int    `json:"experience"` // years
}

// Session is an authenticated user together with its access token
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Account is a user record as stored by the grading server
type Account struct {
	User
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// StoredImage is an uploaded image as stored by the grading server
type StoredImage struct {
	UploadedImage
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}
