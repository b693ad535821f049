// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

// UserStore is the subset of store.Queries the auth service needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u *model.User) error
	UpdateUserPassword(ctx context.Context, id int64, hash string) error
	UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service implements login, token verification and self-service account
// changes. Tokens are stateless: logout only discards the client copy and a
// token stays valid until it expires.
type Service struct {
	users  UserStore
	tokens *Tokens
	hasher *Hasher
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Service.
func NewService(users UserStore, tokens *Tokens, hasher *Hasher, logger *slog.Logger) *Service {
	if hasher == nil {
		hasher = defaultHasher
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tokens: tokens, hasher: hasher, logger: logger, now: time.Now}
}

// Tokens exposes the token signer.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login checks credentials and issues a token. Unknown email and wrong
// password both return model.ErrInvalidCredentials. The active flag is only
// revealed once the password matched.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		s.hasher.CheckDummy(password)
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	ok, err := s.hasher.Check(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, model.ErrInvalidCredentials
	}
	if !ok {
		return nil, model.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, model.ErrAccountInactive
	}

	now := s.now()
	if err := s.users.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	} else {
		t := now.UTC()
		user.LastLoginAt = &t
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(password); err == nil {
			if err := s.users.UpdateUserPassword(ctx, user.ID, hash); err != nil {
				s.logger.Warn("failed to upgrade password hash", "user_id", user.ID, "error", err)
			}
		}
	}

	token, exp, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: &user, Token: token, ExpiresAt: exp}, nil
}

// Verify parses token and loads its user from the store, so role and
// permission changes apply to tokens already issued.
func (s *Service) Verify(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !user.IsActive {
		return nil, model.ErrAccountInactive
	}
	return &user, nil
}

// ProfileInput holds the fields a user may change on their own account.
// Nil fields are left unchanged.
type ProfileInput struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UpdateProfile applies in to the user with id. Role, permissions and the
// active flag cannot be changed here.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		user.Email = model.NormalizeEmail(*in.Email)
	}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUser(ctx, &user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, emailTaken()
		}
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the password of id after checking current.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	ve := model.NewValidationError()
	ok, err := s.hasher.Check(current, user.PasswordHash)
	if err != nil || !ok {
		ve.Add("current_password", "Current password is incorrect")
	}
	validatePassword(ve, "new_password", next)
	if current != "" && current == next {
		ve.Add("new_password", "New password must differ from the current password")
	}
	if err := ve.Err(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	return s.users.UpdateUserPassword(ctx, id, hash)
}

// NewUser is the input for CreateUser.
type NewUser struct {
	Email       string           `json:"email"`
	Password    string           `json:"password"`
	FirstName   string           `json:"first_name"`
	LastName    string           `json:"last_name"`
	Role        string           `json:"role"`
	Permissions rbac.Permissions `json:"permissions"`
}

// CreateUser stores an active account. Its permission set is the role
// template merged with in.Permissions.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	user := &model.User{
		Email:     model.NormalizeEmail(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Role:      in.Role,
		IsActive:  true,
	}
	user.Permissions = rbac.Effective(in.Role, in.Permissions)

	ve := model.NewValidationError()
	if err := user.Validate(); err != nil {
		if fe, ok := model.AsValidationError(err); ok {
			for f, msg := range fe.Fields {
				ve.Add(f, msg)
			}
		}
	}
	validatePassword(ve, "password", in.Password)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, emailTaken()
		}
		return nil, err
	}
	return user, nil
}

// SetPassword overwrites the password of id without checking the old one.
// Used by the operator CLI.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	ve := model.NewValidationError()
	validatePassword(ve, "password", password)
	if err := ve.Err(); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return s.users.UpdateUserPassword(ctx, id, hash)
}

func validatePassword(ve *model.ValidationError, field, password string) {
	if len(password) < model.MinPasswordLength {
		ve.Add(field, fmt.Sprintf("Password must be at least %d characters", model.MinPasswordLength))
	}
	if len(password) > 128 {
		ve.Add(field, "Password must be at most 128 characters")
	}
}

func emailTaken() error {
	ve := model.NewValidationError()
	ve.Add("email", "Email is already in use")
	return ve
}
