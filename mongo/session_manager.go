package mongo

import (
	// Standard Library Imports
	"context"

	// External Imports
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// SessionManager provides a mongo backed implementation for end-user session
// resources.
//
// Implements:
// - oidc.Configure
// - oidc.SessionStore
// - oidc.SessionManager
type SessionManager struct {
	DB *DB
}

// Configure implements oidc.Configure.
func (s *SessionManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxSessionID, "id"),
		NewIndex(IdxUserID, "user_id"),
	}

	collection := s.DB.Collection(oidc.EntitySessions)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// Create stores a new session resource.
func (s *SessionManager) Create(ctx context.Context, session oidc.Session) (result oidc.Session, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "Create",
	})

	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	collection := s.DB.Collection(oidc.EntitySessions)
	_, err = collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return session, nil
}

// Get returns the specified session resource.
func (s *SessionManager) Get(ctx context.Context, sessionID string) (result oidc.Session, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "Get",
		"id":         sessionID,
	})

	// Build Query
	query := bson.M{
		"id": sessionID,
	}

	var session oidc.Session
	collection := s.DB.Collection(oidc.EntitySessions)
	err = collection.FindOne(ctx, query).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return session, nil
}

// Update replaces the stored session.
func (s *SessionManager) Update(ctx context.Context, sessionID string, session oidc.Session) (result oidc.Session, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "Update",
		"id":         sessionID,
	})

	session.ID = sessionID

	// Build Query
	query := bson.M{
		"id": sessionID,
	}

	collection := s.DB.Collection(oidc.EntitySessions)
	res, err := collection.ReplaceOne(ctx, query, session)
	if err != nil {
		log.WithError(err).Error(logError)
		return result, err
	}

	if res.MatchedCount == 0 {
		log.Debug(logNotFound)
		return result, oidc.ErrNotFound
	}

	return session, nil
}

// Delete removes the specified session resource.
func (s *SessionManager) Delete(ctx context.Context, sessionID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "Delete",
		"id":         sessionID,
	})

	// Build Query
	query := bson.M{
		"id": sessionID,
	}

	collection := s.DB.Collection(oidc.EntitySessions)
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

// End marks the session inactive so it can no longer authorize prompt=none
// flows.
func (s *SessionManager) End(ctx context.Context, sessionID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntitySessions,
		"method":     "End",
		"id":         sessionID,
	})

	// Build Query
	query := bson.M{
		"id": sessionID,
	}
	update := bson.M{
		"$set": bson.M{
			"active": false,
		},
	}

	collection := s.DB.Collection(oidc.EntitySessions)
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
