// SPDX-License-Identifier: MPL-2.0

package system

import (
	"context"
	"fmt"
	"strings"
)

// NologinShell is the non-interactive shell assigned to service accounts.
const NologinShell = "/usr/sbin/nologin"

type (
	// AccountManager creates and inspects OS accounts via getent, groupadd,
	// and useradd. Creation is gated by explicit existence checks; existing
	// accounts are never modified.
	AccountManager struct {
		runner Runner
	}

	// UserInfo is the passwd database view of an account.
	UserInfo struct {
		Name  string
		UID   string
		GID   string
		Home  string
		Shell string
	}
)

// NewAccountManager returns an AccountManager backed by the given runner.
func NewAccountManager(r Runner) *AccountManager {
	return &AccountManager{runner: r}
}

// GroupExists reports whether the named group is in the group database.
func (m *AccountManager) GroupExists(ctx context.Context, name string) bool {
	_, err := m.runner.Output(ctx, "getent", "group", name)
	return err == nil
}

// UserExists reports whether the named user is in the passwd database.
func (m *AccountManager) UserExists(ctx context.Context, name string) bool {
	_, err := m.runner.Output(ctx, "getent", "passwd", name)
	return err == nil
}

// CreateGroup creates a system group.
func (m *AccountManager) CreateGroup(ctx context.Context, name string) error {
	return m.runner.Run(ctx, "groupadd", "--system", name)
}

// CreateUser creates a system user in the given group, with a home directory
// and a non-interactive login shell.
func (m *AccountManager) CreateUser(ctx context.Context, name, group, home string) error {
	return m.runner.Run(ctx, "useradd",
		"--system",
		"--gid", group,
		"--home-dir", home,
		"--create-home",
		"--shell", NologinShell,
		name)
}

// UserInfo returns the passwd entry for an existing user.
func (m *AccountManager) UserInfo(ctx context.Context, name string) (*UserInfo, error) {
	out, err := m.runner.Output(ctx, "getent", "passwd", name)
	if err != nil {
		return nil, fmt.Errorf("getent passwd %s: %w", name, err)
	}
	// name:x:uid:gid:gecos:home:shell
	fields := strings.Split(strings.TrimSpace(out), ":")
	if len(fields) < 7 {
		return nil, fmt.Errorf("unexpected passwd entry for %s: %q", name, out)
	}
	return &UserInfo{
		Name:  fields[0],
		UID:   fields[2],
		GID:   fields[3],
		Home:  fields[5],
		Shell: fields[6],
	}, nil
}

// GroupGID returns the numeric GID for an existing group.
func (m *AccountManager) GroupGID(ctx context.Context, name string) (string, error) {
	out, err := m.runner.Output(ctx, "getent", "group", name)
	if err != nil {
		return "", fmt.Errorf("getent group %s: %w", name, err)
	}
	// name:x:gid:members
	fields := strings.Split(strings.TrimSpace(out), ":")
	if len(fields) < 3 {
		return "", fmt.Errorf("unexpected group entry for %s: %q", name, out)
	}
	return fields[2], nil
}
