package mongo

import (
	// Standard Library Imports
	"context"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// ClientManager provides a mongo backed implementation for storing and
// authenticating OAuth 2.0 client resources.
//
// Implements:
// - oidc.Configure
// - oidc.ClientStore
// - oidc.ClientManager
type ClientManager struct {
	DB     *DB
	Hasher fosite.Hasher

	DeniedJTIs oidc.DeniedJTIStore
}

// Configure implements oidc.Configure.
func (c *ClientManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxClientID, "id"),
		NewIndex(IdxSoftwareID, "software_id"),
	}

	collection := c.DB.Collection(oidc.EntityClients)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// getConcrete returns a client resource.
func (c *ClientManager) getConcrete(ctx context.Context, clientID string) (result oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "getConcrete",
		"id":         clientID,
	})

	// Build Query
	query := bson.M{
		"id": clientID,
	}

	var client oidc.Client
	collection := c.DB.Collection(oidc.EntityClients)
	err = collection.FindOne(ctx, query).Decode(&client)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return client, nil
}

// List filters resources to return a list of client resources.
func (c *ClientManager) List(ctx context.Context, filter oidc.ListClientsRequest) (results []oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "List",
	})

	// Build Query
	query := bson.M{}
	if filter.RedirectURI != "" {
		query["redirect_uris"] = filter.RedirectURI
	}
	if filter.GrantType != "" {
		query["grant_types"] = filter.GrantType
	}
	if filter.ResponseType != "" {
		query["response_types"] = filter.ResponseType
	}
	if filter.SectorIdentifierURI != "" {
		query["sector_identifier_uri"] = filter.SectorIdentifierURI
	}
	if filter.SoftwareID != "" {
		query["software_id"] = filter.SoftwareID
	}
	if len(filter.ScopesIntersection) > 0 {
		query["scopes"] = bson.M{"$all": filter.ScopesIntersection}
	}
	if len(filter.ScopesUnion) > 0 {
		query["scopes"] = bson.M{"$in": filter.ScopesUnion}
	}
	if filter.Public {
		query["public"] = filter.Public
	}
	if filter.Trusted {
		query["trusted"] = filter.Trusted
	}
	if filter.Disabled {
		query["disabled"] = filter.Disabled
	}

	collection := c.DB.Collection(oidc.EntityClients)
	cursor, err := collection.Find(ctx, query)
	if err != nil {
		log.WithError(err).Error(logError)
		return results, err
	}

	err = cursor.All(ctx, &results)
	if err != nil {
		log.WithError(err).Error(logError)
		return results, err
	}

	return results, nil
}

// Create stores a new client resource, hashing its secret and registration
// access token on the way in.
func (c *ClientManager) Create(ctx context.Context, client oidc.Client) (result oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "Create",
	})

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreateTime == 0 {
		client.CreateTime = time.Now().Unix()
	}

	if client.Secret != "" {
		hash, hashErr := c.Hasher.Hash(ctx, []byte(client.Secret))
		if hashErr != nil {
			log.WithError(hashErr).Error(logError)
			return result, hashErr
		}
		client.Secret = string(hash)
	}
	if client.RegistrationAccessToken != "" {
		hash, hashErr := c.Hasher.Hash(ctx, []byte(client.RegistrationAccessToken))
		if hashErr != nil {
			log.WithError(hashErr).Error(logError)
			return result, hashErr
		}
		client.RegistrationAccessToken = string(hash)
	}

	// Create resource
	collection := c.DB.Collection(oidc.EntityClients)
	_, err = collection.InsertOne(ctx, client)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return client, nil
}

// Get returns the specified client resource.
func (c *ClientManager) Get(ctx context.Context, clientID string) (result oidc.Client, err error) {
	return c.getConcrete(ctx, clientID)
}

// GetClient implements fosite.ClientManager.
func (c *ClientManager) GetClient(ctx context.Context, clientID string) (fosite.Client, error) {
	client, err := c.getConcrete(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Update replaces the stored client, keeping the prior secret and
// registration access token when the update does not carry new ones.
func (c *ClientManager) Update(ctx context.Context, clientID string, updated oidc.Client) (result oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "Update",
		"id":         clientID,
	})

	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, c.DB)
		if err != nil {
			log.WithError(err).Error(logError)
			return result, err
		}
		defer closeSession()
	}

	current, err := c.getConcrete(ctx, clientID)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.WithError(err).Debug(logNotFound)
			return result, err
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	updated.ID = clientID
	updated.CreateTime = current.CreateTime
	updated.UpdateTime = time.Now().Unix()
	if updated.Secret == "" || updated.Secret == current.Secret {
		updated.Secret = current.Secret
	} else {
		hash, hashErr := c.Hasher.Hash(ctx, []byte(updated.Secret))
		if hashErr != nil {
			log.WithError(hashErr).Error(logError)
			return result, hashErr
		}
		updated.Secret = string(hash)
	}
	if updated.RegistrationAccessToken == "" {
		updated.RegistrationAccessToken = current.RegistrationAccessToken
	}

	// Build Query
	query := bson.M{
		"id": clientID,
	}

	collection := c.DB.Collection(oidc.EntityClients)
	res, err := collection.ReplaceOne(ctx, query, updated)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	if res.MatchedCount == 0 {
		log.Debug(logNotFound)
		return result, oidc.ErrNotFound
	}

	return updated, nil
}

// Delete removes the specified client resource.
func (c *ClientManager) Delete(ctx context.Context, clientID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "Delete",
		"id":         clientID,
	})

	// Build Query
	query := bson.M{
		"id": clientID,
	}

	collection := c.DB.Collection(oidc.EntityClients)
	res, err := collection.DeleteOne(ctx, query)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	if res.DeletedCount == 0 {
		log.Debug(logNotFound)
		return oidc.ErrNotFound
	}

	return nil
}

// Authenticate verifies the identity of a client resource.
func (c *ClientManager) Authenticate(ctx context.Context, clientID string, secret string) (result oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "Authenticate",
		"id":         clientID,
	})

	client, err := c.getConcrete(ctx, clientID)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.WithError(err).Debug(logNotFound)
			return result, err
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	if client.Disabled {
		log.Debug("disabled client denied access")
		return result, fosite.ErrAccessDenied
	}
	if client.Public {
		// The client doesn't have a secret, therefore is authenticated
		// implicitly.
		log.Debug("public client allowed access")
		return client, nil
	}

	err = c.Hasher.Compare(ctx, client.GetHashedSecret(), []byte(secret))
	if err != nil {
		log.WithError(err).Warn("failed to authenticate client secret")
		return result, err
	}

	return client, nil
}

// AuthenticateRegistrationToken verifies the bearer credential guarding the
// client's registration management URI.
func (c *ClientManager) AuthenticateRegistrationToken(ctx context.Context, clientID string, token string) (result oidc.Client, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityClients,
		"method":     "AuthenticateRegistrationToken",
		"id":         clientID,
	})

	client, err := c.getConcrete(ctx, clientID)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.WithError(err).Debug(logNotFound)
			return result, err
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	if client.RegistrationAccessToken == "" {
		log.Debug("client has no registration access token")
		return result, fosite.ErrAccessDenied
	}

	err = c.Hasher.Compare(ctx, []byte(client.RegistrationAccessToken), []byte(token))
	if err != nil {
		log.WithError(err).Warn("failed to authenticate registration access token")
		return result, fosite.ErrAccessDenied
	}

	return client, nil
}

// GrantScopes grants the provided scopes to the specified client resource.
func (c *ClientManager) GrantScopes(ctx context.Context, clientID string, scopes []string) (result oidc.Client, err error) {
	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, c.DB)
		if err != nil {
			return result, err
		}
		defer closeSession()
	}

	client, err := c.getConcrete(ctx, clientID)
	if err != nil {
		return result, err
	}

	client.UpdateTime = time.Now().Unix()
	client.EnableScopeAccess(scopes...)

	return c.Update(ctx, client.ID, client)
}

// RemoveScopes revokes the provided scopes from the specified client
// resource.
func (c *ClientManager) RemoveScopes(ctx context.Context, clientID string, scopes []string) (result oidc.Client, err error) {
	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, c.DB)
		if err != nil {
			return result, err
		}
		defer closeSession()
	}

	client, err := c.getConcrete(ctx, clientID)
	if err != nil {
		return result, err
	}

	client.UpdateTime = time.Now().Unix()
	client.DisableScopeAccess(scopes...)

	return c.Update(ctx, client.ID, client)
}

// ClientAssertionJWTValid returns an error if the JTI is known and not yet
// expired, nil otherwise.
func (c *ClientManager) ClientAssertionJWTValid(ctx context.Context, jti string) (err error) {
	deniedJTI, err := c.DeniedJTIs.Get(ctx, jti)
	if err != nil {
		if err == oidc.ErrNotFound {
			// the jti is not known => valid
			return nil
		}
		return err
	}

	if time.Unix(deniedJTI.Expiry, 0).After(time.Now()) {
		// the jti is not expired yet => invalid
		return oidc.ErrJTIKnown
	}

	return nil
}

// SetClientAssertionJWT marks a JTI as known for the given expiry time,
// cleaning out expired entries first.
func (c *ClientManager) SetClientAssertionJWT(ctx context.Context, jti string, exp time.Time) (err error) {
	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, c.DB)
		if err != nil {
			return err
		}
		defer closeSession()
	}

	err = c.DeniedJTIs.DeleteBefore(ctx, time.Now().Unix())
	if err != nil && err != oidc.ErrNotFound {
		return err
	}

	_, err = c.DeniedJTIs.Create(ctx, oidc.NewDeniedJTI(jti, exp))
	if err != nil {
		if err == oidc.ErrResourceExists {
			return oidc.ErrJTIKnown
		}
		return err
	}

	return nil
}
