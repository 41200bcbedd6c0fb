package oidc

const (
	// EntityClients provides the name of the entity to use in order to create,
	// read, update and delete registered Clients.
	EntityClients = "client"

	// EntityAuthorizationGrants provides the name of the entity to use in
	// order to create, read, update and delete Authorization Grants, that is,
	// the durable record of a user's scope approval for a client.
	EntityAuthorizationGrants = "authorization_grant"

	// EntityAuthorizationCodes provides the name of the entity to use in order
	// to create, read, update and delete Authorization Codes.
	EntityAuthorizationCodes = "authorization_code"

	// EntityAccessTokens provides the name of the entity to use in order to
	// create, read, update and delete Access Tokens.
	EntityAccessTokens = "access_token"

	// EntityRefreshTokens provides the name of the entity to use in order to
	// create, read, update and delete Refresh Tokens.
	EntityRefreshTokens = "refresh_token"

	// EntityPairwiseSubjects provides the name of the entity to use in order
	// to store persistent pairwise subject identifier mappings.
	EntityPairwiseSubjects = "pairwise_subject"

	// EntitySessions provides the name of the entity to use in order to
	// create, read, update and delete end-user Sessions.
	EntitySessions = "session"

	// EntityJtiDenylist provides the name of the entity to use in order to
	// track JWT IDs that must not be replayed, for example software statement
	// and request object jti claims.
	EntityJtiDenylist = "jti_deny_list"

	// EntityUsers provides the name of the entity to use in order to create,
	// read, update and delete Users.
	EntityUsers = "user"
)
