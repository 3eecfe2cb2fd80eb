package domain

// PermissionType orders a user's access to a route:
// None < Viewer < Editor < Owner. Owner is implicit for the route's
// owner and is never stored.
type PermissionType int

const (
	PermissionNone PermissionType = iota
	PermissionViewer
	PermissionEditor
	PermissionOwner
)

// ParsePermissionType validates a wire-format permission type. Only
// viewer and editor are grantable.
func ParsePermissionType(value string) (PermissionType, error) {
	switch value {
	case "viewer":
		return PermissionViewer, nil
	case "editor":
		return PermissionEditor, nil
	default:
		return PermissionNone, Errorf(KindValidation, "unknown permission type %q", value)
	}
}

func (p PermissionType) String() string {
	switch p {
	case PermissionViewer:
		return "viewer"
	case PermissionEditor:
		return "editor"
	case PermissionOwner:
		return "owner"
	default:
		return "none"
	}
}

// AtLeast reports whether this permission grants what required demands.
func (p PermissionType) AtLeast(required PermissionType) bool {
	return p >= required
}

// Permission is a stored (route, user) grant.
type Permission struct {
	RouteID string
	UserID  string
	Type    PermissionType
}

// EffectivePermission resolves a user's access to a route. The owner
// always holds Owner; otherwise the stored grant applies, and absence
// defaults to Viewer on public routes, None on private ones.
func EffectivePermission(info *RouteInfo, userID string, stored PermissionType) PermissionType {
	if userID != "" && userID == info.OwnerID {
		return PermissionOwner
	}
	if stored != PermissionNone {
		return stored
	}
	if info.IsPublic {
		return PermissionViewer
	}
	return PermissionNone
}
