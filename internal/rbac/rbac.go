// Package rbac derives what a viewer may do with a project from ownership
// and the share flag.
package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	// RoleEditor applies to unclaimed projects and to anonymous sessions,
	// which anyone with access to the device may edit.
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionDelete
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// RoleFor resolves the role of identity (empty when anonymous) on a project
// owned by ownerID. A shared view is always read-only.
func RoleFor(identity, ownerID string, shared bool) Role {
	switch {
	case shared:
		return RoleViewer
	case ownerID != "" && identity == ownerID:
		return RoleOwner
	case ownerID == "" || identity == "":
		// anonymous sessions only reach the device-local store
		return RoleEditor
	default:
		return RoleViewer
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleOwner:
		return Role(role)
	default:
		return RoleViewer
	}
}
