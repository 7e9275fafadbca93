package constants

type contextKey string

const (
	Token    = "token"
	TokenKey = contextKey("token")
	UserKey  = contextKey("user_id")
)
