// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
)

// errLastSuperAdmin is returned when a change would leave no active
// super admin.
var errLastSuperAdmin = errors.New("refusing to deactivate the last active super admin")

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(
		newUserCreateCmd(a),
		newUserListCmd(a),
		newUserActiveCmd(a, "deactivate", false),
		newUserActiveCmd(a, "activate", true),
		newUserPasswordCmd(a),
	)
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var in auth.NewUser
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an active account. The role's permission template is applied.
Without --password a random password is generated and printed once.`,
		Example: `  agencyctl user create --email ana@example.com --role editor --first-name Ana`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !rbac.IsValidRole(in.Role) {
				return fmt.Errorf("unknown role %q", in.Role)
			}
			generated := in.Password == ""
			if generated {
				in.Password = rand.Text()
			}
			u, err := a.auth.CreateUser(cmd.Context(), in)
			if err != nil {
				return describeErr(err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "created user %d <%s> role=%s\n", u.ID, u.Email, u.Role)
			if generated {
				_, _ = fmt.Fprintf(out, "password: %s\n", in.Password)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "login email (required)")
	f.StringVar(&in.Password, "password", "", "initial password (generated when empty)")
	f.StringVar(&in.FirstName, "first-name", "", "first name")
	f.StringVar(&in.LastName, "last-name", "", "last name")
	f.StringVar(&in.Role, "role", rbac.RoleEditor, "role: super_admin, admin, editor or viewer")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	var (
		filter   store.UserFilter
		asJSON   bool
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !inactive {
				active := true
				filter.Active = &active
			}
			users, total, err := a.queries.ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(users)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tACTIVE\tLAST LOGIN")
			for _, u := range users {
				last := "-"
				if u.LastLoginAt != nil {
					last = u.LastLoginAt.Format("2006-01-02 15:04")
				}
				name := strings.TrimSpace(u.FirstName + " " + u.LastName)
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%s\n", u.ID, u.Email, name, u.Role, u.IsActive, last)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%d of %d users\n", len(users), total)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Role, "role", "", "only this role")
	f.StringVar(&filter.Search, "search", "", "match email or name")
	f.IntVar(&filter.Limit, "limit", 100, "maximum rows")
	f.BoolVar(&inactive, "all", false, "include deactivated accounts")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newUserActiveCmd(a *app, use string, active bool) *cobra.Command {
	short := "Disable an account's login"
	if active {
		short = "Re-enable a deactivated account"
	}
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.queries.GetUserByEmail(ctx, model.NormalizeEmail(args[0]))
			if err != nil {
				return describeErr(err)
			}
			if !active && u.IsActive && u.Role == rbac.RoleSuperAdmin {
				n, err := a.queries.CountActiveSuperAdmins(ctx)
				if err != nil {
					return err
				}
				if n <= 1 {
					return errLastSuperAdmin
				}
			}
			if err := a.queries.SetUserActive(ctx, u.ID, active); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%sd %s\n", use, u.Email)
			return nil
		},
	}
}

func newUserPasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "password EMAIL",
		Short: "Reset an account's password",
		Long: `Overwrite an account's password without knowing the old one.
Without --password a random password is generated and printed once.
Tokens issued before the reset stay valid until they expire.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			u, err := a.queries.GetUserByEmail(ctx, model.NormalizeEmail(args[0]))
			if err != nil {
				return describeErr(err)
			}
			generated := password == ""
			if generated {
				password = rand.Text()
			}
			if err := a.auth.SetPassword(ctx, u.ID, password); err != nil {
				return describeErr(err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "password reset for %s\n", u.Email)
			if generated {
				_, _ = fmt.Fprintf(out, "password: %s\n", password)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (generated when empty)")
	return cmd
}

// describeErr flattens validation and not-found errors into one line.
func describeErr(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return errors.New("user not found")
	}
	if ve, ok := model.AsValidationError(err); ok {
		parts := make([]string, 0, len(ve.Fields))
		for f, msg := range ve.Fields {
			parts = append(parts, f+": "+msg)
		}
		slices.Sort(parts)
		return fmt.Errorf("invalid input: %s", strings.Join(parts, "; "))
	}
	return err
}
