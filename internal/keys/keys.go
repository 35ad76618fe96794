// Package keys derives the storage keys every repository reads and writes.
// All functions are pure: keys are recomputed from (entity kind, active
// user, optional project) on every access and never persisted as data.
package keys

// GallerySharedAcrossUsers records a deliberate scoping exception: the
// gallery collection and its image index are shared by all users, while
// every other entity is scoped to the active user. Changing this requires
// a data migration, not just a different key.
const GallerySharedAcrossUsers = true

// Well-known fixed keys.
const (
	ActiveUser     = "activeUser"
	Users          = "users"
	DashboardStats = "dashboardStats"
)

// ActiveUserLocations is the ordered list of keys probed when resolving
// the current user. The first non-empty value wins. Only ActiveUser is
// ever written; the rest are legacy locations kept for old installs.
var ActiveUserLocations = []string{ActiveUser, "currentUser", "loggedInUser"}

// Projects returns the key holding the project collection for a user,
// or the legacy global key when no user is active.
func Projects(userID string) string {
	if userID != "" {
		return "projects_" + userID
	}
	return "projects"
}

// Tasks returns one of four key forms depending on which scope arguments
// are present: user+project, user only, project only, or fully global.
func Tasks(userID, projectID string) string {
	switch {
	case userID != "" && projectID != "":
		return "tasks_" + userID + "_" + projectID
	case userID != "":
		return "tasks_" + userID
	case projectID != "":
		return "tasks_" + projectID
	default:
		return "tasks_global"
	}
}

// Settings returns the per-user settings key, or the global one when
// anonymous.
func Settings(userID string) string {
	if userID != "" {
		return "settings_" + userID
	}
	return "settings_global"
}

// Gallery returns the gallery collection key. See GallerySharedAcrossUsers.
func Gallery() string {
	return "gallery"
}

// Profile returns the profile key for a user. The second return is false
// when no user is active: profiles do not exist in the anonymous scope.
func Profile(userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	return "userProfile_" + userID, true
}

// LegacyProjects lists older key names a scoped project collection may
// have been written under, most specific first.
func LegacyProjects(userID string) []string {
	if userID == "" {
		return nil
	}
	return []string{"projects"}
}

// LegacyTasks lists older key names a scoped task collection may have
// been written under. Candidates never include the canonical key itself.
func LegacyTasks(userID, projectID string) []string {
	switch {
	case userID != "" && projectID != "":
		return []string{"tasks_" + projectID, "tasks_" + userID, "tasks_global", "tasks"}
	case userID != "":
		return []string{"tasks_global", "tasks"}
	case projectID != "":
		return []string{"tasks"}
	default:
		return []string{"tasks"}
	}
}

// LegacySettings lists older key names for a user's settings.
func LegacySettings(userID string) []string {
	if userID == "" {
		return []string{"settings"}
	}
	return []string{"settings_global", "settings"}
}
