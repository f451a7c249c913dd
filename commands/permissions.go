package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmhi/discord-bot/tmhi"
)

var permissionID = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

func runGetPermissions(ctx context.Context, req *Request) error {
	if len(req.Args) > 1 {
		req.Usage(ctx)
		return nil
	}
	var (
		m   *tmhi.Member
		ok  bool
		err error
	)
	if len(req.Args) == 0 {
		m, ok, err = req.Author(ctx)
	} else {
		if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "view another member's permissions"); !ok {
			return err
		}
		gm, found, ferr := findMember(ctx, req, req.Args[0])
		if !found || ferr != nil {
			return ferr
		}
		m, ok, err = req.loadMember(ctx, gm)
	}
	if !ok || err != nil {
		return err
	}

	ids := m.Permissions.IDs()
	if len(ids) == 0 {
		req.Replyf(ctx, "%s has no permissions", m.DisplayName)
		return nil
	}
	req.Replyf(ctx, "%s has: `%s`", m.DisplayName, strings.Join(ids, "`, `"))
	return nil
}

func runListPermissions(ctx context.Context, req *Request) error {
	perms, err := req.Store.ListPermissions(ctx, req.Guild.ID)
	if err != nil {
		return err
	}
	if len(perms) == 0 {
		req.Reply(ctx, "No permissions are defined on this server yet")
		return nil
	}
	var b strings.Builder
	b.WriteString("Permissions on this server:\n")
	for _, p := range perms {
		fmt.Fprintf(&b, "`%s`", p.ID)
		if p.Name != p.ID {
			b.WriteString(" " + p.Name)
		}
		if p.Comment != "" {
			b.WriteString(" - " + p.Comment)
		}
		b.WriteByte('\n')
	}
	req.Reply(ctx, b.String())
	return nil
}

func runCreatePermission(ctx context.Context, req *Request) error {
	if len(req.Args) < 1 || len(req.Args) > 3 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermCreatePermissions, "create a permission"); !ok {
		return err
	}
	id := strings.ToUpper(req.Args[0])
	if !permissionID.MatchString(id) {
		req.Reply(ctx, "Sorry, permission ids are 2 to 64 letters, digits or underscores, starting with a letter")
		return nil
	}
	if id == tmhi.PermGodMode {
		req.Replyf(ctx, "Sorry, %s is reserved", tmhi.PermGodMode)
		return nil
	}
	var name, comment string
	if len(req.Args) > 1 {
		name = req.Args[1]
	}
	if len(req.Args) > 2 {
		comment = req.Args[2]
	}
	if err := req.Store.CreatePermission(ctx, tmhi.NewPermission(id, req.Guild.ID, name, comment)); err != nil {
		return err
	}
	req.Replyf(ctx, "Created the %s permission", id)
	return nil
}

// grantable resolves a typed permission id, answering the user when it is
// reserved or undefined.
func grantable(ctx context.Context, req *Request, arg string) (tmhi.Permission, bool, error) {
	p := permissionArg(req, arg)
	if p.ID == tmhi.PermGodMode {
		req.Replyf(ctx, "Sorry, %s cannot be granted", tmhi.PermGodMode)
		return p, false, nil
	}
	exists, err := req.Store.PermissionExists(ctx, p)
	if err != nil {
		return p, false, err
	}
	if !exists {
		req.Replyf(ctx, "Sorry, the %s permission doesn't exist. Create it with `%screatePermission %s`", p.ID, req.Prefix, p.ID)
		return p, false, nil
	}
	return p, true, nil
}

func findRole(ctx context.Context, req *Request, arg string) (tmhi.Role, bool, error) {
	id := snowflake(arg)
	var role tmhi.Role
	err := tmhi.ErrNotFound
	if id != "" {
		role, err = req.Session.GuildRole(ctx, req.Guild.ID, id)
	}
	if errors.Is(err, tmhi.ErrNotFound) {
		req.Reply(ctx, "Sorry, I couldn't find that role")
		return role, false, nil
	}
	return role, err == nil, err
}

func findMember(ctx context.Context, req *Request, arg string) (tmhi.GuildMember, bool, error) {
	id := snowflake(arg)
	var gm tmhi.GuildMember
	err := tmhi.ErrNotFound
	if id != "" {
		gm, err = req.Session.GuildMember(ctx, req.Guild.ID, id)
	}
	if errors.Is(err, tmhi.ErrNotFound) {
		req.Reply(ctx, "Sorry, I don't think that user is in this server, maybe you mistyped their name?")
		return gm, false, nil
	}
	return gm, err == nil, err
}

func runGrantRolePermission(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 || len(req.Args) > 3 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermGrantRolePermissions, "grant permissions to roles"); !ok {
		return err
	}
	role, ok, err := findRole(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	p, ok, err := grantable(ctx, req, req.Args[1])
	if !ok {
		return err
	}
	comment := ""
	if len(req.Args) == 3 {
		comment = req.Args[2]
	}
	if err := req.Store.GrantRolePermission(ctx, role, p, comment); err != nil {
		return err
	}
	req.Replyf(ctx, "Granted %s to the %s role", p.ID, role.Name)
	return nil
}

func runRevokeRolePermission(ctx context.Context, req *Request) error {
	if len(req.Args) != 2 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermGrantRolePermissions, "revoke permissions from roles"); !ok {
		return err
	}
	role, ok, err := findRole(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	p := permissionArg(req, req.Args[1])
	revoked, err := req.Store.RevokeRolePermission(ctx, role, p)
	if err != nil {
		return err
	}
	if !revoked {
		req.Replyf(ctx, "The %s role didn't have %s", role.Name, p.ID)
		return nil
	}
	req.Replyf(ctx, "Revoked %s from the %s role", p.ID, role.Name)
	return nil
}

func runGrantMemberPermission(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 || len(req.Args) > 3 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "grant permissions to members"); !ok {
		return err
	}
	gm, ok, err := findMember(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	p, ok, err := grantable(ctx, req, req.Args[1])
	if !ok {
		return err
	}
	comment := ""
	if len(req.Args) == 3 {
		comment = req.Args[2]
	}
	// the grant references the member row
	if err := req.Store.AddMember(ctx, gm); err != nil {
		return err
	}
	if err := req.Store.GrantMemberPermission(ctx, req.Guild.ID, gm.ID, p, comment); err != nil {
		return err
	}
	req.Replyf(ctx, "Granted %s to %s", p.ID, gm.DisplayName)
	return nil
}

func runRevokeMemberPermission(ctx context.Context, req *Request) error {
	if len(req.Args) != 2 {
		req.Usage(ctx)
		return nil
	}
	if _, ok, err := req.Authorize(ctx, tmhi.PermAdmin, "revoke permissions from members"); !ok {
		return err
	}
	gm, ok, err := findMember(ctx, req, req.Args[0])
	if !ok {
		return err
	}
	p := permissionArg(req, req.Args[1])
	revoked, err := req.Store.RevokeMemberPermission(ctx, req.Guild.ID, gm.ID, p)
	if err != nil {
		return err
	}
	if !revoked {
		req.Replyf(ctx, "%s had no direct %s grant", gm.DisplayName, p.ID)
		return nil
	}
	req.Replyf(ctx, "Revoked %s from %s", p.ID, gm.DisplayName)
	return nil
}
