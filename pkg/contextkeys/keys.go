package contextkeys

// Keys under which the auth middleware stores the caller on gin.Context.
const (
	UserIDKey  = "userID"
	IsStaffKey = "isStaff"
	ClaimsKey  = "claims"
)
