package ledger

import (
	"context"
	"strings"

	"usdt-ledger/internal/model"
)

// RegisterInput is a registration request.
type RegisterInput struct {
	Username   string
	Credential string
	Role       model.Role
	Code       string // registration code, required when the service has one
}

// Register creates a user after checking the registration code, required
// fields, username uniqueness and role caps. Nothing is written when any
// check fails.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	const op = "Register"

	if s.registrationCode != "" && in.Code != s.registrationCode {
		return nil, permissionError(op, "invalid registration code")
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, validationError(op, "username is required")
	}
	if strings.TrimSpace(in.Credential) == "" {
		return nil, validationError(op, "credential is required")
	}

	users, err := s.database.ListUsers(ctx)
	if err != nil {
		return nil, collaboratorError(op, "listing users", err)
	}
	if err := CheckRegistration(users, username, in.Role); err != nil {
		return nil, err
	}

	user, err := s.database.InsertUser(ctx, &model.User{
		ID:         s.idgen.New(),
		Username:   username,
		Credential: in.Credential,
		Role:       in.Role,
		CreatedAt:  s.clock.Now(),
	})
	if err != nil {
		return nil, collaboratorError(op, "inserting user", err)
	}

	s.publish(KindUsers, "")
	s.logger.Info("user registered", "username", user.Username, "role", string(user.Role))
	return user, nil
}

// Login checks a username and credential and returns the acting user.
func (s *Service) Login(ctx context.Context, username, credential string) (ActingUser, error) {
	const op = "Login"

	username = strings.TrimSpace(username)
	if username == "" || credential == "" {
		return ActingUser{}, validationError(op, "username and credential are required")
	}

	user, err := s.database.Authenticate(ctx, username, credential)
	if err != nil {
		return ActingUser{}, collaboratorError(op, "authenticating", err)
	}
	if user == nil {
		return ActingUser{}, permissionError(op, "invalid username or credential")
	}
	return ActingUser{Username: user.Username, Role: user.Role}, nil
}

// Capacity reports how many users of each role exist against the caps.
type Capacity struct {
	Admins       int
	MaxAdmins    int
	Operators    int
	MaxOperators int
}

// AdminsFull reports whether no further admin can register.
func (c Capacity) AdminsFull() bool { return c.Admins >= c.MaxAdmins }

// OperatorsFull reports whether no further operator can register.
func (c Capacity) OperatorsFull() bool { return c.Operators >= c.MaxOperators }

// RoleCapacity counts registered users per role.
func (s *Service) RoleCapacity(ctx context.Context) (Capacity, error) {
	users, err := s.database.ListUsers(ctx)
	if err != nil {
		return Capacity{}, collaboratorError("RoleCapacity", "listing users", err)
	}
	admins, operators := countRoles(users)
	return Capacity{
		Admins:       admins,
		MaxAdmins:    MaxAdmins,
		Operators:    operators,
		MaxOperators: MaxOperators,
	}, nil
}
