package oidc

// User is a resource owner known to the authorization server. The engine only
// consumes users through the authentication oracle; profile fields feed the
// standard OpenID Connect claims.
type User struct {
	// ID uniquely identifies the user.
	ID string `bson:"id" json:"id" xml:"id"`
	// Username is the name the user authenticates with.
	Username string `bson:"username" json:"username" xml:"username"`
	// Password is the hashed credential. Never returned to callers.
	Password string `bson:"password" json:"-" xml:"-"`
	// Name is the user's display name, released under the profile scope.
	Name string `bson:"name" json:"name,omitempty" xml:"name,omitempty"`
	// GivenName is released under the profile scope.
	GivenName string `bson:"given_name" json:"given_name,omitempty" xml:"given_name,omitempty"`
	// FamilyName is released under the profile scope.
	FamilyName string `bson:"family_name" json:"family_name,omitempty" xml:"family_name,omitempty"`
	// Email is released under the email scope.
	Email string `bson:"email" json:"email,omitempty" xml:"email,omitempty"`
	// EmailVerified is released under the email scope.
	EmailVerified bool `bson:"email_verified" json:"email_verified,omitempty" xml:"email_verified,omitempty"`
	// Address is released under the address scope.
	Address string `bson:"address" json:"address,omitempty" xml:"address,omitempty"`
	// PhoneNumber is released under the phone scope.
	PhoneNumber string `bson:"phone_number" json:"phone_number,omitempty" xml:"phone_number,omitempty"`
	// Scopes contains scopes the user may grant. An empty set allows any
	// scope the client is registered for.
	Scopes []string `bson:"scopes" json:"scopes,omitempty" xml:"scopes,omitempty"`
	// CreateTime is when the user was created, in unixtime.
	CreateTime int64 `bson:"create_time" json:"create_time" xml:"create_time"`
	// UpdateTime is the last time the user record changed, in unixtime.
	UpdateTime int64 `bson:"update_time" json:"update_time,omitempty" xml:"update_time,omitempty"`
	// Disabled blocks the user from authenticating.
	Disabled bool `bson:"disabled" json:"disabled" xml:"disabled"`
}

// IsEmpty returns whether or not the user resource is an empty record.
func (u User) IsEmpty() bool {
	return u.ID == ""
}
