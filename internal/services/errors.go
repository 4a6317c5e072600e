package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrOrderNotFound indicates no order matches the provided id.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderNotApproved signals a dispatch attempt against an order that is
	// not in the approved state and carries no invite link. Surfaced to the
	// caller, never retried.
	ErrOrderNotApproved = errors.New("order: not approved")
	// ErrUserNotFound indicates no user matches the provided id.
	ErrUserNotFound = errors.New("user: not found")
	// ErrCartNotFound indicates no cart matches the provided id.
	ErrCartNotFound = errors.New("cart: not found")
	// ErrReferralCodeConflict signals that code generation kept colliding with
	// existing codes after the bounded number of attempts.
	ErrReferralCodeConflict = errors.New("referral: code conflict")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
