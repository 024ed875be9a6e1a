package policy

import (
	"testing"

	"github.com/taskito/backend/internal/models"
)

var allRoles = []models.MemberRole{
	models.MemberRoleOwner,
	models.MemberRoleAdmin,
	models.MemberRoleMember,
	models.MemberRoleGuest,
}

func TestCanRemoveMember(t *testing.T) {
	t.Run("self owner removal always denied", func(t *testing.T) {
		for _, acting := range allRoles {
			d := CanRemoveMember(acting, models.MemberRoleOwner, true)
			if d.Allowed || d.Reason != ReasonSelfOwnerRemoval {
				t.Fatalf("acting=%s: expected self-owner denial, got %+v", acting, d)
			}
		}
	})

	t.Run("owner may remove anyone else", func(t *testing.T) {
		for _, target := range allRoles {
			d := CanRemoveMember(models.MemberRoleOwner, target, false)
			if !d.Allowed {
				t.Fatalf("target=%s: expected allow, got %+v", target, d)
			}
		}
	})

	t.Run("admin may remove members only", func(t *testing.T) {
		for _, target := range allRoles {
			d := CanRemoveMember(models.MemberRoleAdmin, target, false)
			wantAllow := target == models.MemberRoleMember
			if d.Allowed != wantAllow {
				t.Fatalf("target=%s: expected allowed=%v, got %+v", target, wantAllow, d)
			}
			if !wantAllow && d.Reason != ReasonInsufficientRole {
				t.Fatalf("target=%s: expected %q, got %q", target, ReasonInsufficientRole, d.Reason)
			}
		}
	})

	t.Run("members and guests may remove nobody", func(t *testing.T) {
		for _, acting := range []models.MemberRole{models.MemberRoleMember, models.MemberRoleGuest} {
			for _, target := range allRoles {
				for _, self := range []bool{false, true} {
					d := CanRemoveMember(acting, target, self)
					if d.Allowed {
						t.Fatalf("acting=%s target=%s self=%v: expected denial", acting, target, self)
					}
				}
			}
		}
	})

	t.Run("non-owner self removal follows normal rules", func(t *testing.T) {
		// Leaving a workspace as admin/member/guest is a removal of oneself;
		// the self flag only hard-blocks the owner case.
		d := CanRemoveMember(models.MemberRoleAdmin, models.MemberRoleMember, true)
		if !d.Allowed {
			t.Fatalf("expected allow, got %+v", d)
		}
	})
}

func TestCanChangeRole(t *testing.T) {
	t.Run("self role change always denied", func(t *testing.T) {
		for _, acting := range allRoles {
			for _, newRole := range allRoles {
				d := CanChangeRole(acting, acting, newRole, true)
				if d.Allowed || d.Reason != ReasonSelfRoleChange {
					t.Fatalf("acting=%s new=%s: expected self denial, got %+v", acting, newRole, d)
				}
			}
		}
	})

	t.Run("owner involvement requires acting owner", func(t *testing.T) {
		for _, acting := range []models.MemberRole{models.MemberRoleAdmin, models.MemberRoleMember, models.MemberRoleGuest} {
			d := CanChangeRole(acting, models.MemberRoleOwner, models.MemberRoleMember, false)
			if d.Allowed || d.Reason != ReasonOwnerRoleGate {
				t.Fatalf("acting=%s demoting owner: got %+v", acting, d)
			}

			d = CanChangeRole(acting, models.MemberRoleMember, models.MemberRoleOwner, false)
			if d.Allowed || d.Reason != ReasonOwnerRoleGate {
				t.Fatalf("acting=%s granting owner: got %+v", acting, d)
			}
		}

		d := CanChangeRole(models.MemberRoleOwner, models.MemberRoleMember, models.MemberRoleOwner, false)
		if !d.Allowed {
			t.Fatalf("owner granting owner: got %+v", d)
		}
		d = CanChangeRole(models.MemberRoleOwner, models.MemberRoleOwner, models.MemberRoleAdmin, false)
		if !d.Allowed {
			t.Fatalf("owner demoting another owner: got %+v", d)
		}
	})

	t.Run("admin on admin lateral moves denied", func(t *testing.T) {
		d := CanChangeRole(models.MemberRoleAdmin, models.MemberRoleAdmin, models.MemberRoleMember, false)
		if d.Allowed || d.Reason != ReasonAdminOnAdmin {
			t.Fatalf("admin demoting admin: got %+v", d)
		}
		d = CanChangeRole(models.MemberRoleAdmin, models.MemberRoleMember, models.MemberRoleAdmin, false)
		if d.Allowed || d.Reason != ReasonAdminOnAdmin {
			t.Fatalf("admin promoting to admin: got %+v", d)
		}
	})

	t.Run("owner may change any non-self non-owner pairing", func(t *testing.T) {
		for _, target := range allRoles {
			for _, newRole := range allRoles {
				d := CanChangeRole(models.MemberRoleOwner, target, newRole, false)
				if !d.Allowed {
					t.Fatalf("owner target=%s new=%s: got %+v", target, newRole, d)
				}
			}
		}
	})

	t.Run("admin may toggle a member between member and guest", func(t *testing.T) {
		for _, newRole := range []models.MemberRole{models.MemberRoleMember, models.MemberRoleGuest} {
			d := CanChangeRole(models.MemberRoleAdmin, models.MemberRoleMember, newRole, false)
			if !d.Allowed {
				t.Fatalf("admin member->%s: got %+v", newRole, d)
			}
		}
		// Promoting a guest is not within admin reach under the rule table.
		d := CanChangeRole(models.MemberRoleAdmin, models.MemberRoleGuest, models.MemberRoleMember, false)
		if d.Allowed || d.Reason != ReasonInsufficientRole {
			t.Fatalf("admin guest->member: got %+v", d)
		}
	})

	t.Run("members and guests may change nobody", func(t *testing.T) {
		for _, acting := range []models.MemberRole{models.MemberRoleMember, models.MemberRoleGuest} {
			for _, target := range allRoles {
				for _, newRole := range allRoles {
					d := CanChangeRole(acting, target, newRole, false)
					if d.Allowed {
						t.Fatalf("acting=%s target=%s new=%s: expected denial", acting, target, newRole)
					}
				}
			}
		}
	})
}

func TestCanAddMember(t *testing.T) {
	expected := map[models.MemberRole]bool{
		models.MemberRoleOwner:  true,
		models.MemberRoleAdmin:  true,
		models.MemberRoleMember: false,
		models.MemberRoleGuest:  false,
	}

	for _, acting := range allRoles {
		d := CanAddMember(acting)
		if d.Allowed != expected[acting] {
			t.Fatalf("acting=%s: expected allowed=%v, got %+v", acting, expected[acting], d)
		}
		if !d.Allowed && d.Reason != ReasonAddMemberRequired {
			t.Fatalf("acting=%s: expected %q, got %q", acting, ReasonAddMemberRequired, d.Reason)
		}
	}
}

func TestDecisionsNeverPanicOnUnknownRoles(t *testing.T) {
	unknown := models.MemberRole("superuser")

	if d := CanRemoveMember(unknown, models.MemberRoleMember, false); d.Allowed {
		t.Fatalf("unknown acting role should deny, got %+v", d)
	}
	if d := CanChangeRole(unknown, models.MemberRoleMember, models.MemberRoleGuest, false); d.Allowed {
		t.Fatalf("unknown acting role should deny, got %+v", d)
	}
	if d := CanAddMember(unknown); d.Allowed {
		t.Fatalf("unknown acting role should deny, got %+v", d)
	}
}
