package mongo

import (
	// Standard Library Imports
	"context"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// GrantManager provides a mongo backed implementation for authorization
// grant resources.
//
// Implements:
// - oidc.Configure
// - oidc.GrantStore
// - oidc.GrantManager
type GrantManager struct {
	DB *DB
}

// Configure implements oidc.Configure.
func (g *GrantManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxGrantID, "id"),
		NewIndex(IdxGrantTriple, "client_id", "user_id", "session_id"),
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// getConcrete returns a grant resource.
func (g *GrantManager) getConcrete(ctx context.Context, grantID string) (result oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "getConcrete",
		"id":         grantID,
	})

	// Build Query
	query := bson.M{
		"id": grantID,
	}

	var grant oidc.AuthorizationGrant
	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	err = collection.FindOne(ctx, query).Decode(&grant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return grant, nil
}

// List filters resources to return a list of grant resources.
func (g *GrantManager) List(ctx context.Context, filter oidc.ListGrantsRequest) (results []oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "List",
	})

	// Build Query
	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.SessionID != "" {
		query["session_id"] = filter.SessionID
	}
	if filter.Active {
		query["active"] = filter.Active
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
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

// Create stores a new grant resource.
func (g *GrantManager) Create(ctx context.Context, grant oidc.AuthorizationGrant) (result oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "Create",
	})

	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreateTime == 0 {
		grant.CreateTime = time.Now().Unix()
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	_, err = collection.InsertOne(ctx, grant)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return grant, nil
}

// Get returns the specified grant resource.
func (g *GrantManager) Get(ctx context.Context, grantID string) (result oidc.AuthorizationGrant, err error) {
	return g.getConcrete(ctx, grantID)
}

// Update replaces the stored grant.
func (g *GrantManager) Update(ctx context.Context, grantID string, grant oidc.AuthorizationGrant) (result oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "Update",
		"id":         grantID,
	})

	grant.ID = grantID
	grant.UpdateTime = time.Now().Unix()

	// Build Query
	query := bson.M{
		"id": grantID,
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	res, err := collection.ReplaceOne(ctx, query, grant)
	if err != nil {
		log.WithError(err).Error(logError)
		return result, err
	}

	if res.MatchedCount == 0 {
		log.Debug(logNotFound)
		return result, oidc.ErrNotFound
	}

	return grant, nil
}

// Delete removes the specified grant resource.
func (g *GrantManager) Delete(ctx context.Context, grantID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "Delete",
		"id":         grantID,
	})

	// Build Query
	query := bson.M{
		"id": grantID,
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
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

// GetByClientUserSession returns the active grant for the given
// (client, user, session) triple.
func (g *GrantManager) GetByClientUserSession(ctx context.Context, clientID, userID, sessionID string) (result oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "GetByClientUserSession",
		"clientID":   clientID,
		"userID":     userID,
		"sessionID":  sessionID,
	})

	// Build Query
	query := bson.M{
		"client_id":  clientID,
		"user_id":    userID,
		"session_id": sessionID,
		"active":     true,
	}

	var grant oidc.AuthorizationGrant
	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	err = collection.FindOne(ctx, query).Decode(&grant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return grant, nil
}

// AccreteScopes unions the provided scopes onto the grant's approved set.
// The $addToSet update keeps the operation atomic with respect to the grant
// id.
func (g *GrantManager) AccreteScopes(ctx context.Context, grantID string, scopes []string) (result oidc.AuthorizationGrant, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "AccreteScopes",
		"id":         grantID,
	})

	// Build Query
	query := bson.M{
		"id": grantID,
	}
	update := bson.M{
		"$addToSet": bson.M{
			"granted_scopes": bson.M{"$each": scopes},
		},
		"$set": bson.M{
			"update_time": time.Now().Unix(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var grant oidc.AuthorizationGrant
	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	err = collection.FindOneAndUpdate(ctx, query, update, opts).Decode(&grant)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return grant, nil
}

// Deactivate marks the grant inactive. Tokens hanging off the grant are
// revoked separately through the token manager.
func (g *GrantManager) Deactivate(ctx context.Context, grantID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationGrants,
		"method":     "Deactivate",
		"id":         grantID,
	})

	// Build Query
	query := bson.M{
		"id": grantID,
	}
	update := bson.M{
		"$set": bson.M{
			"active":      false,
			"update_time": time.Now().Unix(),
		},
	}

	collection := g.DB.Collection(oidc.EntityAuthorizationGrants)
	res, err := collection.UpdateOne(ctx, query, update)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	if res.MatchedCount == 0 {
		log.Debug(logNotFound)
		return oidc.ErrNotFound
	}

	return nil
}
