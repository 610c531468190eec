package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrMessageNotFound = errors.New("message not found")
	// ErrJoinConflict means another join marker for the same user was committed concurrently.
	ErrJoinConflict = errors.New("join marker already exists")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
