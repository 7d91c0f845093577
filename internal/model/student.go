package model

import "time"

// Student represents a registered examinee.
type Student struct {
	ID           int       `json:"id"`
	RollNumber   string    `json:"roll_number"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	ExamTaken    bool      `json:"exam_taken"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterStudentRequest is the payload for student registration.
type RegisterStudentRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Phone    string `json:"phone" binding:"required,len=10,numeric"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=6,max=20"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}
