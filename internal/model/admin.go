package model

import "time"

// Admin represents a portal administrator.
type Admin struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// AdminLoginResponse is returned after successful admin login.
type AdminLoginResponse struct {
	Token string `json:"token"`
	Admin Admin  `json:"admin"`
}

// ResetExamRequest is the payload for the administrative exam reset.
type ResetExamRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=6,max=20"`
	Subject    string `json:"subject" binding:"required,min=1,max=100"`
}
