package auth

// CanViewUserStream reports whether the caller may read userID's personal
// notification stream: only the user themselves or staff.
func CanViewUserStream(c *Claims, userID string) bool {
	if c == nil {
		return false
	}
	return c.IsStaff || c.UserID == userID
}
