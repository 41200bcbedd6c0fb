package oidc

// Session is an authenticated end-user session at the authorization server.
// It records which clients authenticated through it so end-session can fan
// logout out to every relying party.
type Session struct {
	// ID uniquely identifies the session.
	ID string `bson:"id" json:"id" xml:"id"`
	// UserID is the authenticated resource owner.
	UserID string `bson:"user_id" json:"user_id" xml:"user_id"`
	// AuthTime is when the user last actively authenticated, in unixtime.
	AuthTime int64 `bson:"auth_time" json:"auth_time" xml:"auth_time"`
	// ClientIDs lists every client that completed an authorization within
	// this session.
	ClientIDs []string `bson:"client_ids" json:"client_ids" xml:"client_ids"`
	// Active is false once the session has been ended.
	Active bool `bson:"active" json:"active" xml:"active"`
}

// IsEmpty returns whether or not the session resource is an empty record.
func (s Session) IsEmpty() bool {
	return s.ID == ""
}

// AddClient records a client as a participant of the session, without
// duplication.
func (s *Session) AddClient(clientID string) {
	for _, id := range s.ClientIDs {
		if id == clientID {
			return
		}
	}
	s.ClientIDs = append(s.ClientIDs, clientID)
}
