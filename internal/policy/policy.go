// Package policy decides whether a workspace member may mutate another
// membership. Decisions are pure values; persistence-level invariants such as
// "at least one owner remains" live in the membership service, not here.
package policy

import "github.com/taskito/backend/internal/models"

const (
	ReasonSelfOwnerRemoval  = "cannot remove the sole/self owner"
	ReasonSelfRoleChange    = "cannot change own role"
	ReasonOwnerRoleGate     = "only an owner may assign or revoke owner role"
	ReasonAdminOnAdmin      = "admins cannot modify other admins or grant admin role"
	ReasonInsufficientRole  = "insufficient privilege"
	ReasonAddMemberRequired = "must be owner or admin to add members"
)

// Decision is the outcome of a policy check. A denial is a first-class value,
// never an error: callers translate it into an access-denied response.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// CanRemoveMember reports whether a member with the acting role may remove
// the target member. Rules are evaluated in order; the first match wins.
func CanRemoveMember(acting, target models.MemberRole, self bool) Decision {
	if self && target == models.MemberRoleOwner {
		return deny(ReasonSelfOwnerRemoval)
	}
	if acting == models.MemberRoleOwner {
		return allow()
	}
	if acting == models.MemberRoleAdmin && target == models.MemberRoleMember {
		return allow()
	}
	return deny(ReasonInsufficientRole)
}

// CanChangeRole reports whether a member with the acting role may change the
// target member's role to newRole.
func CanChangeRole(acting, target, newRole models.MemberRole, self bool) Decision {
	if self {
		return deny(ReasonSelfRoleChange)
	}
	if target == models.MemberRoleOwner || newRole == models.MemberRoleOwner {
		if acting != models.MemberRoleOwner {
			return deny(ReasonOwnerRoleGate)
		}
		return allow()
	}
	if acting == models.MemberRoleAdmin && (target == models.MemberRoleAdmin || newRole == models.MemberRoleAdmin) {
		return deny(ReasonAdminOnAdmin)
	}
	if acting == models.MemberRoleOwner {
		return allow()
	}
	if acting == models.MemberRoleAdmin && target == models.MemberRoleMember {
		return allow()
	}
	return deny(ReasonInsufficientRole)
}

// CanAddMember reports whether a member with the acting role may add new
// members at all. Granting owner or admin at creation time is additionally
// restricted to owners, which the membership service enforces through
// CanChangeRole-equivalent gating.
func CanAddMember(acting models.MemberRole) Decision {
	if acting == models.MemberRoleOwner || acting == models.MemberRoleAdmin {
		return allow()
	}
	return deny(ReasonAddMemberRequired)
}
