package common

// Cookie names shared by the session service and the HTTP layer.
const (
	// SessionCookieName carries the SessionToken.
	SessionCookieName = "token"
	// SignupDetailsCookieName carries the SignupToken while a link is pending.
	SignupDetailsCookieName = "signup_details"
	// SignupProviderCookieName marks which provider completed the first half.
	SignupProviderCookieName = "signup"
)
