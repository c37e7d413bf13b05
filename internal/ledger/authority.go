package ledger

import (
	"usdt-ledger/internal/model"
)

// Role caps enforced at registration time.
const (
	MaxAdmins    = 1
	MaxOperators = 2
)

// MaxOperatorEdits is how many times an operator may edit one transaction.
const MaxOperatorEdits = 1

// ActingUser identifies who performs a mutation. It is passed explicitly to
// every check; there is no ambient current user.
type ActingUser struct {
	Username string
	Role     model.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a ActingUser) IsAdmin() bool { return a.Role == model.RoleAdmin }

func (a ActingUser) authenticated() bool {
	return a.Username != "" && a.Role.Valid()
}

// AuthorizeCreate checks that actor may create a transaction.
func AuthorizeCreate(actor ActingUser) error {
	if !actor.authenticated() {
		return permissionError("CreateTransaction", "not authenticated")
	}
	return nil
}

// AuthorizeEdit checks that actor may edit tx and returns the edit count the
// record must carry after the edit. Admin edits leave the count unchanged;
// an operator edit is allowed only while the count is below the limit and
// raises it.
//
// The check runs against the caller's copy of tx. Two operators racing on
// the same record can both pass; the store keeps the last write.
func AuthorizeEdit(actor ActingUser, tx *model.Transaction) (int, error) {
	if !actor.authenticated() {
		return 0, permissionError("EditTransaction", "not authenticated")
	}
	if actor.IsAdmin() {
		return tx.EditCount, nil
	}
	if tx.EditCount >= MaxOperatorEdits {
		return 0, saturatedError("EditTransaction", "transaction %s has already been edited %d time(s)", tx.ID, tx.EditCount)
	}
	return tx.EditCount + 1, nil
}

// AuthorizeDelete checks that actor may delete transactions. Only admins can.
func AuthorizeDelete(actor ActingUser) error {
	if !actor.IsAdmin() {
		return permissionError("DeleteTransaction", "only an admin can delete records")
	}
	return nil
}

// CheckRegistration validates a registration against the current users.
func CheckRegistration(users []*model.User, username string, role model.Role) error {
	const op = "Register"
	if !role.Valid() {
		return validationError(op, "unknown role %q", role)
	}

	admins, operators := countRoles(users)
	for _, u := range users {
		if u.Username == username {
			return validationError(op, "username %q already exists", username)
		}
	}
	if role == model.RoleAdmin && admins >= MaxAdmins {
		return validationError(op, "at most %d admin may be registered", MaxAdmins)
	}
	if role == model.RoleOperator && operators >= MaxOperators {
		return validationError(op, "at most %d operators may be registered", MaxOperators)
	}
	return nil
}

func countRoles(users []*model.User) (admins, operators int) {
	for _, u := range users {
		switch u.Role {
		case model.RoleAdmin:
			admins++
		case model.RoleOperator:
			operators++
		}
	}
	return admins, operators
}
