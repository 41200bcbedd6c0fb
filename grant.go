package oidc

// AuthorizationGrant is the durable record of a user's scope approval for a
// client within a session. Codes and tokens hang off a grant; revoking one
// member of the lineage walks back to the grant and invalidates its siblings.
type AuthorizationGrant struct {
	// ID uniquely identifies the grant.
	ID string `bson:"id" json:"id" xml:"id"`
	// ClientID is the client the approval was given to.
	ClientID string `bson:"client_id" json:"client_id" xml:"client_id"`
	// UserID is the resource owner who approved the grant.
	UserID string `bson:"user_id" json:"user_id" xml:"user_id"`
	// SessionID binds the grant to the browser session it was approved in.
	SessionID string `bson:"session_id" json:"session_id" xml:"session_id"`
	// GrantedScopes is the union of every scope set the user has approved for
	// this client and session. The set only ever grows.
	GrantedScopes []string `bson:"granted_scopes" json:"granted_scopes" xml:"granted_scopes"`
	// CreateTime is when the grant was first approved, in unixtime.
	CreateTime int64 `bson:"create_time" json:"create_time" xml:"create_time"`
	// UpdateTime is the last time scope accreted onto the grant, in unixtime.
	UpdateTime int64 `bson:"update_time" json:"update_time,omitempty" xml:"update_time,omitempty"`
	// Active is false once the grant has been invalidated.
	Active bool `bson:"active" json:"active" xml:"active"`
}

// IsEmpty returns whether or not the grant resource is an empty record.
func (g AuthorizationGrant) IsEmpty() bool {
	return g.ID == ""
}

// HasGrantedScopes reports whether every requested scope has already been
// approved on this grant. Requests covered here need no fresh consent.
func (g AuthorizationGrant) HasGrantedScopes(requested []string) bool {
	for _, scope := range requested {
		found := false
		for _, granted := range g.GrantedScopes {
			if granted == scope {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MissingScopes returns the requested scopes not yet approved on this grant,
// that is, the set the user must be re-consented for.
func (g AuthorizationGrant) MissingScopes(requested []string) []string {
	var missing []string
	for _, scope := range requested {
		found := false
		for _, granted := range g.GrantedScopes {
			if granted == scope {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, scope)
		}
	}
	return missing
}
