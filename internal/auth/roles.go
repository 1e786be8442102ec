package auth

import "github.com/pkg/errors"

// ErrForbidden is returned when a caller lacks the role a mutating
// operation requires.
var ErrForbidden = errors.New("caller role is not permitted to perform this operation")

// Role represents the privilege level of an authenticated caller.
type Role string

const (
	// RoleAdmin may change governance parameters, manage positions and
	// force-recover failed messages and transfers.
	RoleAdmin Role = "admin"
	// RoleKeeper may trigger rebalance evaluation/execution and timeout
	// recovery scans.
	RoleKeeper Role = "keeper"
	// RoleUser may deposit and withdraw.
	RoleUser Role = "user"
)

// IsAdmin checks if the role is admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// IsKeeper checks if the role is keeper. Admin implies keeper.
func (r Role) IsKeeper() bool {
	return r == RoleKeeper || r == RoleAdmin
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Caller is the explicit authenticated-caller argument passed to every
// mutating vault operation. There is no ambient identity; handlers resolve
// a Caller from the request and thread it through.
type Caller struct {
	Subject string
	Role    Role
}

// RequireAdmin returns ErrForbidden unless the caller is an admin.
func (c Caller) RequireAdmin() error {
	if !c.Role.IsAdmin() {
		return errors.Wrapf(ErrForbidden, "subject %q role %q", c.Subject, c.Role)
	}

	return nil
}

// RequireKeeper returns ErrForbidden unless the caller is a keeper or admin.
func (c Caller) RequireKeeper() error {
	if !c.Role.IsKeeper() {
		return errors.Wrapf(ErrForbidden, "subject %q role %q", c.Subject, c.Role)
	}

	return nil
}
