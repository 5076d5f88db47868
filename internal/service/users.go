// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/olegiv/evsite-go/internal/auth"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// Profile field limits.
const (
	MaxNameLength = 200
	MaxBioLength  = 2000
)

// SignupInput is a new account.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ProfileInput updates the caller's profile.
type ProfileInput struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Bio          string `json:"bio"`
}

// Account is a user with profile and app roles.
type Account struct {
	User    store.User    `json:"user"`
	Profile store.Profile `json:"profile"`
	Roles   []string      `json:"roles"`
}

// UserWithRoles is a row of the admin user list.
type UserWithRoles struct {
	store.User
	Roles []string `json:"roles"`
}

// UserService manages accounts, profiles and app roles.
type UserService struct {
	base
	queries     *store.Queries
	events      *EventService
	allowSignup bool
}

// NewUserService creates a user service. allowSignup gates self-service sign-up.
func NewUserService(d Deps, events *EventService, allowSignup bool) *UserService {
	return &UserService{base: newBase(d), queries: store.New(d.DB), events: events, allowSignup: allowSignup}
}

// Signup creates an account without app roles.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (store.User, error) {
	if !s.allowSignup {
		return store.User{}, ErrSignupDisabled
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)

	v := model.NewValidationError()
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		v.Add("email", "must be a valid email address")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		v.Add("password", err.Error())
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		v.Add("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	if err := v.OrNil(); err != nil {
		return store.User{}, err
	}

	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.User{}, fmt.Errorf("checking email: %w", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return store.User{}, err
	}
	now := s.now()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return store.User{}, fmt.Errorf("creating user: %w", err)
	}
	if _, err := s.queries.UpsertProfile(ctx, store.UpsertProfileParams{
		UserID:      user.ID,
		DisplayName: name,
		UpdatedAt:   now,
	}); err != nil {
		return store.User{}, fmt.Errorf("creating profile: %w", err)
	}

	_ = s.events.LogInfo(ctx, model.EventCategoryUser, "User signed up", user.ID, "", map[string]any{"email": email})
	return user, nil
}

// Authenticate checks credentials and returns the user's identity. Hashes
// made with older parameters are upgraded on success.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		// Hash anyway so unknown emails take as long as wrong passwords.
		_, _ = auth.HashPassword(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if auth.NeedsRehash(user.PasswordHash) {
		if hash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{PasswordHash: hash, UpdatedAt: now, ID: user.ID}); err != nil {
				s.Logger.Warn("failed to upgrade password hash", "user_id", user.ID, "error", err)
			}
		}
	}
	if err := s.queries.UpdateUserLastLogin(ctx, store.UpdateUserLastLoginParams{
		LastLoginAt: util.NullTimeFromValue(now),
		ID:          user.ID,
	}); err != nil {
		s.Logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	return s.identity(ctx, user)
}

// Identity loads the identity of a user id.
func (s *UserService) Identity(ctx context.Context, userID int64) (*model.Identity, error) {
	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return s.identity(ctx, user)
}

func (s *UserService) identity(ctx context.Context, user store.User) (*model.Identity, error) {
	roles, err := s.queries.ListUserRoles(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}
	return &model.Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Roles: roles}, nil
}

// Account returns a user with profile and roles. A missing profile row
// yields an empty profile.
func (s *UserService) Account(ctx context.Context, userID int64) (Account, error) {
	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return Account{}, notFound(err)
	}
	profile, err := s.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		profile = store.Profile{UserID: userID}
	} else if err != nil {
		return Account{}, fmt.Errorf("loading profile: %w", err)
	}
	roles, err := s.queries.ListUserRoles(ctx, userID)
	if err != nil {
		return Account{}, fmt.Errorf("loading roles: %w", err)
	}
	return Account{User: user, Profile: profile, Roles: roles}, nil
}

// UpdateProfile changes the caller's name and profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Organization = strings.TrimSpace(in.Organization)

	v := model.NewValidationError()
	for field, val := range map[string]string{
		"name":         in.Name,
		"display_name": in.DisplayName,
		"organization": in.Organization,
	} {
		if utf8.RuneCountInString(val) > MaxNameLength {
			v.Add(field, fmt.Sprintf("must be at most %d characters", MaxNameLength))
		}
	}
	if utf8.RuneCountInString(in.Phone) > 50 {
		v.Add("phone", "must be at most 50 characters")
	}
	if utf8.RuneCountInString(in.Bio) > MaxBioLength {
		v.Add("bio", fmt.Sprintf("must be at most %d characters", MaxBioLength))
	}
	if err := v.OrNil(); err != nil {
		return Account{}, err
	}

	now := s.now()
	if err := s.queries.UpdateUserName(ctx, store.UpdateUserNameParams{Name: in.Name, UpdatedAt: now, ID: userID}); err != nil {
		return Account{}, fmt.Errorf("updating user: %w", err)
	}
	if _, err := s.queries.UpsertProfile(ctx, store.UpsertProfileParams{
		UserID:       userID,
		DisplayName:  in.DisplayName,
		Phone:        in.Phone,
		Organization: in.Organization,
		Bio:          in.Bio,
		UpdatedAt:    now,
	}); err != nil {
		return Account{}, fmt.Errorf("updating profile: %w", err)
	}
	return s.Account(ctx, userID)
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return notFound(err)
	}
	if ok, err := auth.CheckPassword(current, user.PasswordHash); err != nil || !ok {
		return ErrInvalidCredentials
	}
	if err := auth.ValidatePassword(next); err != nil {
		v := model.NewValidationError()
		v.Add("password", err.Error())
		return v
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{PasswordHash: hash, UpdatedAt: s.now(), ID: userID}); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	_ = s.events.LogInfo(ctx, model.EventCategoryAuth, "Password changed", userID, "", nil)
	return nil
}

// List returns a page of users with their roles and the total count.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]UserWithRoles, int64, error) {
	l, o := clampPage(limit, offset)
	users, err := s.queries.ListUsers(ctx, store.ListUsersParams{Limit: l, Offset: o})
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	total, err := s.queries.CountUsers(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}
	out := make([]UserWithRoles, len(users))
	for i, u := range users {
		roles, err := s.queries.ListUserRoles(ctx, u.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("loading roles: %w", err)
		}
		out[i] = UserWithRoles{User: u, Roles: roles}
	}
	return out, total, nil
}

// SetRoles replaces the app roles of a user. Only masters may call it, and a
// master cannot remove their own master role.
func (s *UserService) SetRoles(ctx context.Context, actor *model.Identity, userID int64, roles []string) ([]string, error) {
	if !actor.IsMaster() {
		return nil, ErrForbidden
	}

	v := model.NewValidationError()
	clean := make([]string, 0, len(roles))
	for _, r := range roles {
		if !model.IsValidAppRole(r) {
			v.Add("roles", fmt.Sprintf("unknown role %q", r))
			continue
		}
		if !slices.Contains(clean, r) {
			clean = append(clean, r)
		}
	}
	if actor.UserID == userID && !slices.Contains(clean, model.AppRoleMaster) {
		v.Add("roles", "cannot remove your own master role")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if _, err := s.queries.GetUserByID(ctx, userID); err != nil {
		return nil, notFound(err)
	}

	err := store.InTx(ctx, s.DB, func(q *store.Queries) error {
		if err := q.DeleteUserRoles(ctx, userID); err != nil {
			return fmt.Errorf("clearing roles: %w", err)
		}
		now := s.now()
		for _, r := range clean {
			if err := q.AddUserRole(ctx, store.AddUserRoleParams{UserID: userID, Role: r, CreatedAt: now}); err != nil {
				return fmt.Errorf("adding role: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.events.LogInfo(ctx, model.EventCategoryUser, "User roles changed", actor.UserID, "", map[string]any{
		"target_user_id": userID,
		"roles":          clean,
	})
	slices.Sort(clean)
	return clean, nil
}
