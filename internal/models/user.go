package models

// User is owned by the external identity provider. The engine only
// references it by ID.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Name returns the display name, falling back to "User" like the
// identity provider's own profile pages.
func (u *User) Name() string {
	if u == nil || u.DisplayName == "" {
		return "User"
	}
	return u.DisplayName
}
