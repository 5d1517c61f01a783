package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// UniqueViolation reports whether err is a unique constraint violation and returns the constraint name.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// CheckViolation reports whether err is a check constraint violation and returns the constraint name.
func CheckViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeCheckViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
