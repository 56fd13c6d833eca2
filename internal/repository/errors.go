package repository

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqInvalidText         = "22P02"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool { return pqCode(err) == pqUniqueViolation }

func isForeignKeyViolation(err error) bool { return pqCode(err) == pqForeignKeyViolation }

// isInvalidID matches a malformed uuid literal, which can only mean the row
// does not exist.
func isInvalidID(err error) bool { return pqCode(err) == pqInvalidText }
