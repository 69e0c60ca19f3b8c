package domain

// AccessClaims is what the engine embeds in an access token.
type AccessClaims struct {
	UserID string
	Email  string
	Roles  []string
}

// Profile is the user summary returned by a successful login.
type Profile struct {
	ID          string
	GivenName   string
	FamilyName  string
	Email       string
	Roles       []string
	Permissions []string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         Profile
}

type RefreshResult struct {
	AccessToken string
}

// Identity is the current user projection returned to an authenticated caller.
type Identity struct {
	ID         string
	GivenName  string
	FamilyName string
	Email      string
	Phone      *string
	Roles      []string
}
