// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/testutil"
)

func TestLogin(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)
	testutil.CreateUser(t, db, "editor@example.com", "correct-horse", rbac.RoleEditor)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"wrong password", "editor@example.com", "wrong-horse", model.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "correct-horse", model.ErrInvalidCredentials},
		{"empty password", "editor@example.com", "", model.ErrInvalidCredentials},
		{"email case and spaces", "  Editor@Example.COM ", "correct-horse", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "editor@example.com", res.User.Email)
			assert.NotNil(t, res.User.LastLoginAt)
			assert.True(t, res.ExpiresAt.After(time.Now()))
		})
	}
}

func TestLogin_InactiveAfterPasswordCheck(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)
	u := testutil.CreateUser(t, db, "gone@example.com", "correct-horse", rbac.RoleViewer)
	require.NoError(t, store.New(db).SetUserActive(ctx, u.ID, false))

	_, err := svc.Login(ctx, "gone@example.com", "wrong-horse")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials, "inactive flag must not leak before password match")

	_, err = svc.Login(ctx, "gone@example.com", "correct-horse")
	assert.ErrorIs(t, err, model.ErrAccountInactive)
}

func TestLogin_UpgradesHash(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	q := store.New(db)
	u := testutil.CreateUser(t, db, "old@example.com", "correct-horse", rbac.RoleViewer)

	stronger := auth.Params{Time: 2, Memory: 128, Threads: 1, KeyLen: 16, SaltLen: 8}
	svc := auth.NewService(q, auth.NewTokens(testutil.TestTokenSecret, time.Hour, "t"), auth.NewHasher(stronger), testutil.DiscardLogger())

	_, err := svc.Login(ctx, "old@example.com", "correct-horse")
	require.NoError(t, err)

	got, err := q.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, auth.NewHasher(stronger).NeedsRehash(got.PasswordHash))
	assert.NotEqual(t, u.PasswordHash, got.PasswordHash)
}

func TestVerify_LoadsFreshUser(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	q := store.New(db)
	svc := testutil.AuthService(db)
	u := testutil.CreateUser(t, db, "viewer@example.com", "correct-horse", rbac.RoleViewer)

	res, err := svc.Login(ctx, "viewer@example.com", "correct-horse")
	require.NoError(t, err)

	// Promote after the token was issued.
	u.Role = rbac.RoleEditor
	u.Permissions = rbac.RoleTemplate(rbac.RoleEditor)
	require.NoError(t, q.UpdateUser(ctx, u))

	got, err := svc.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, rbac.RoleEditor, got.Role)
	assert.True(t, got.Can(rbac.ResourceBlog, rbac.ActionWrite))

	// Permissions granted at login are still granted.
	for r, actions := range res.User.Permissions {
		for a, ok := range actions {
			if ok {
				assert.True(t, got.Can(r, a), "%s:%s lost after verify", r, a)
			}
		}
	}

	require.NoError(t, q.SetUserActive(ctx, u.ID, false))
	_, err = svc.Verify(ctx, res.Token)
	assert.ErrorIs(t, err, model.ErrAccountInactive)
}

func TestVerify_Errors(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)

	_, err := svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, model.ErrTokenInvalid)

	ghost, _, err := svc.Tokens().Issue(&model.User{ID: 999, Role: rbac.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.Verify(ctx, ghost)
	assert.ErrorIs(t, err, model.ErrTokenInvalid, "token for a missing user")

	u := testutil.CreateUser(t, db, "a@example.com", "correct-horse", rbac.RoleAdmin)
	svc.Tokens().SetClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	expired, _, err := svc.Tokens().Issue(u)
	require.NoError(t, err)
	svc.Tokens().SetClock(time.Now)

	_, err = svc.Verify(ctx, expired)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestChangePassword(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)
	u := testutil.CreateUser(t, db, "me@example.com", "correct-horse", rbac.RoleEditor)

	err := svc.ChangePassword(ctx, u.ID, "wrong", "short")
	ve, ok := model.AsValidationError(err)
	require.True(t, ok, "want ValidationError, got %v", err)
	assert.Contains(t, ve.Fields, "current_password")
	assert.Contains(t, ve.Fields, "new_password")

	err = svc.ChangePassword(ctx, u.ID, "correct-horse", "correct-horse")
	ve, ok = model.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "new_password")

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "correct-horse", "battery-staple"))
	_, err = svc.Login(ctx, "me@example.com", "correct-horse")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "me@example.com", "battery-staple")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)
	u := testutil.CreateUser(t, db, "me@example.com", "correct-horse", rbac.RoleEditor)
	testutil.CreateUser(t, db, "taken@example.com", "correct-horse", rbac.RoleViewer)

	first := "Ada"
	got, err := svc.UpdateProfile(ctx, u.ID, auth.ProfileInput{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, rbac.RoleEditor, got.Role)

	taken := "Taken@example.com"
	_, err = svc.UpdateProfile(ctx, u.ID, auth.ProfileInput{Email: &taken})
	ve, ok := model.AsValidationError(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Fields, "email")

	bad := "not-an-email"
	_, err = svc.UpdateProfile(ctx, u.ID, auth.ProfileInput{Email: &bad})
	_, ok = model.AsValidationError(err)
	assert.True(t, ok)

	_, err = svc.UpdateProfile(ctx, 9999, auth.ProfileInput{FirstName: &first})
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestCreateUser(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := testutil.AuthService(db)

	u, err := svc.CreateUser(ctx, auth.NewUser{
		Email:     "New@Example.com",
		Password:  "long-enough",
		FirstName: "New",
		Role:      rbac.RoleEditor,
		Permissions: rbac.Permissions{
			rbac.ResourceBlog:     {rbac.ActionPublish: false},
			rbac.ResourceProjects: {rbac.ActionPublish: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.False(t, u.Can(rbac.ResourceBlog, rbac.ActionPublish), "override must revoke")
	assert.True(t, u.Can(rbac.ResourceProjects, rbac.ActionPublish), "override must grant")
	assert.True(t, u.Can(rbac.ResourceBlog, rbac.ActionWrite), "template kept")

	_, err = svc.CreateUser(ctx, auth.NewUser{Email: "x", Password: "short", Role: "wizard"})
	ve, ok := model.AsValidationError(err)
	require.True(t, ok)
	for _, f := range []string{"email", "password", "role", "first_name"} {
		assert.Contains(t, ve.Fields, f)
	}

	_, err = svc.CreateUser(ctx, auth.NewUser{Email: "new@example.com", Password: "long-enough", FirstName: "Dup", Role: rbac.RoleViewer})
	ve, ok = model.AsValidationError(err)
	require.True(t, ok, "duplicate email: %v", err)
	assert.Contains(t, ve.Fields, "email")
}
