package user

import (
	"context"

	"github.com/trezcool/ischoolgo/core"
)

// Permission names one operation guarded at the service boundary.
type Permission string

const (
	PermDashboardView Permission = "dashboard:view"

	PermStudentsRead   Permission = "students:read"
	PermStudentsWrite  Permission = "students:write"
	PermStudentsDelete Permission = "students:delete"

	PermGroupsRead  Permission = "groups:read"
	PermGroupsWrite Permission = "groups:write"

	PermAttendanceRead  Permission = "attendance:read"
	PermAttendanceWrite Permission = "attendance:write"

	PermPaymentsRead  Permission = "payments:read"
	PermPaymentsWrite Permission = "payments:write"

	PermMarketing Permission = "marketing:generate"
	PermAnalytics Permission = "analytics:view"
	PermAIChat    Permission = "ai:chat"

	PermUsersRead  Permission = "users:read"
	PermUsersWrite Permission = "users:write"
)

var (
	everyone    = AllRoles
	management  = []string{RoleAdmin, RoleDirector}
	instructors = []string{RoleAdmin, RoleDirector, RoleHeadTrainer, RoleTeacher}

	permissions = map[Permission][]string{
		PermDashboardView: everyone,

		PermStudentsRead:   {RoleAdmin, RoleDirector, RoleHeadTrainer, RoleTeacher, RoleAgent},
		PermStudentsWrite:  {RoleAdmin, RoleDirector, RoleHeadTrainer, RoleTeacher, RoleAgent},
		PermStudentsDelete: management,

		PermGroupsRead:  instructors,
		PermGroupsWrite: {RoleAdmin, RoleDirector, RoleHeadTrainer},

		PermAttendanceRead:  instructors,
		PermAttendanceWrite: instructors,

		PermPaymentsRead:  {RoleAdmin, RoleDirector, RoleAgent},
		PermPaymentsWrite: {RoleAdmin, RoleDirector, RoleAgent},

		PermMarketing: {RoleAdmin, RoleDirector, RoleMarketer},
		PermAnalytics: {RoleAdmin, RoleDirector, RoleHeadTrainer},
		PermAIChat:    everyone,

		PermUsersRead:  management,
		PermUsersWrite: management,
	}
)

// Can reports whether `role` is granted `perm`.
func Can(role string, perm Permission) bool {
	for _, r := range permissions[perm] {
		if r == role {
			return true
		}
	}
	return false
}

// PermissionsOf lists every permission granted to `role`.
func PermissionsOf(role string) []Permission {
	perms := make([]Permission, 0, len(permissions))
	for perm := range permissions {
		if Can(role, perm) {
			perms = append(perms, perm)
		}
	}
	return perms
}

// Actor is the identity on whose behalf an operation runs.
type Actor struct {
	ID   string
	Role string
}

// SystemActor runs operator commands (migrations, CLI user management).
var SystemActor = Actor{ID: "", Role: RoleAdmin}

type actorCtxKey struct{}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorCtxKey{}).(Actor)
	return actor, ok
}

// Authorize fails with a core.ForbiddenError unless the context actor is granted `perm`.
func Authorize(ctx context.Context, perm Permission) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return core.NewForbiddenError("", string(perm))
	}
	if !Can(actor.Role, perm) {
		return core.NewForbiddenError(actor.Role, string(perm))
	}
	return nil
}
