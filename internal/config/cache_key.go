package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentLoginKey returns the cache key guarding a student's active login session.
func (r *CacheKeyStruct) StudentLoginKey(rollNumber string) string {
	return fmt.Sprintf("login:%s", rollNumber)
}

// ExamStartKey returns the cache key for a session's start time (unix seconds).
// The database row is the source of truth; this is a read-path optimization.
func (r *CacheKeyStruct) ExamStartKey(rollNumber, subject string) string {
	return fmt.Sprintf("student:%s:subject:%s:session_start", rollNumber, subject)
}

var CacheKey = NewCacheKeyStruct()
