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

// UserManager provides a mongo backed implementation for user resources.
//
// Implements:
// - oidc.Configure
// - oidc.UserStorer
// - oidc.UserManager
type UserManager struct {
	DB     *DB
	Hasher fosite.Hasher
}

// Configure implements oidc.Configure.
func (u *UserManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxUserID, "id"),
		NewUniqueIndex(IdxUsername, "username"),
	}

	collection := u.DB.Collection(oidc.EntityUsers)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// getConcrete returns a user resource.
func (u *UserManager) getConcrete(ctx context.Context, userID string) (result oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "getConcrete",
		"id":         userID,
	})

	// Build Query
	query := bson.M{
		"id": userID,
	}

	var user oidc.User
	collection := u.DB.Collection(oidc.EntityUsers)
	err = collection.FindOne(ctx, query).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return user, nil
}

// List filters resources to return a list of user resources.
func (u *UserManager) List(ctx context.Context, filter oidc.ListUsersRequest) (results []oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "List",
	})

	// Build Query
	query := bson.M{}
	if filter.Username != "" {
		query["username"] = filter.Username
	}
	if filter.Email != "" {
		query["email"] = filter.Email
	}
	if len(filter.ScopesIntersection) > 0 {
		query["scopes"] = bson.M{"$all": filter.ScopesIntersection}
	}
	if len(filter.ScopesUnion) > 0 {
		query["scopes"] = bson.M{"$in": filter.ScopesUnion}
	}
	if filter.Disabled {
		query["disabled"] = filter.Disabled
	}

	collection := u.DB.Collection(oidc.EntityUsers)
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

// Create stores a new user resource, hashing the password on the way in.
func (u *UserManager) Create(ctx context.Context, user oidc.User) (result oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "Create",
	})

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreateTime == 0 {
		user.CreateTime = time.Now().Unix()
	}

	if user.Password != "" {
		hash, hashErr := u.Hasher.Hash(ctx, []byte(user.Password))
		if hashErr != nil {
			log.WithError(hashErr).Error(logError)
			return result, hashErr
		}
		user.Password = string(hash)
	}

	// Create resource
	collection := u.DB.Collection(oidc.EntityUsers)
	_, err = collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return user, nil
}

// Get returns the specified user resource.
func (u *UserManager) Get(ctx context.Context, userID string) (result oidc.User, err error) {
	return u.getConcrete(ctx, userID)
}

// GetByUsername returns the user resource registered under the given
// username.
func (u *UserManager) GetByUsername(ctx context.Context, username string) (result oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "GetByUsername",
		"username":   username,
	})

	// Build Query
	query := bson.M{
		"username": username,
	}

	var user oidc.User
	collection := u.DB.Collection(oidc.EntityUsers)
	err = collection.FindOne(ctx, query).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return user, nil
}

// Update replaces the stored user, keeping the prior password when the
// update does not carry a new one.
func (u *UserManager) Update(ctx context.Context, userID string, updated oidc.User) (result oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "Update",
		"id":         userID,
	})

	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, u.DB)
		if err != nil {
			log.WithError(err).Error(logError)
			return result, err
		}
		defer closeSession()
	}

	current, err := u.getConcrete(ctx, userID)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.WithError(err).Debug(logNotFound)
			return result, err
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	updated.ID = userID
	updated.CreateTime = current.CreateTime
	updated.UpdateTime = time.Now().Unix()
	if updated.Password == "" || updated.Password == current.Password {
		updated.Password = current.Password
	} else {
		hash, hashErr := u.Hasher.Hash(ctx, []byte(updated.Password))
		if hashErr != nil {
			log.WithError(hashErr).Error(logError)
			return result, hashErr
		}
		updated.Password = string(hash)
	}

	// Build Query
	query := bson.M{
		"id": userID,
	}

	collection := u.DB.Collection(oidc.EntityUsers)
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

// Delete removes the specified user resource.
func (u *UserManager) Delete(ctx context.Context, userID string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "Delete",
		"id":         userID,
	})

	// Build Query
	query := bson.M{
		"id": userID,
	}

	collection := u.DB.Collection(oidc.EntityUsers)
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

// Authenticate verifies a user's credentials.
func (u *UserManager) Authenticate(ctx context.Context, username string, password string) (result oidc.User, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityUsers,
		"method":     "Authenticate",
		"username":   username,
	})

	user, err := u.GetByUsername(ctx, username)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.WithError(err).Debug(logNotFound)
			return result, err
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	if user.Disabled {
		log.Debug("disabled user denied access")
		return result, fosite.ErrAccessDenied
	}

	err = u.Hasher.Compare(ctx, []byte(user.Password), []byte(password))
	if err != nil {
		log.WithError(err).Warn("failed to authenticate user password")
		return result, err
	}

	return user, nil
}

// GrantScopes grants the provided scopes to the specified user resource.
func (u *UserManager) GrantScopes(ctx context.Context, userID string, scopes []string) (result oidc.User, err error) {
	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, u.DB)
		if err != nil {
			return result, err
		}
		defer closeSession()
	}

	user, err := u.getConcrete(ctx, userID)
	if err != nil {
		return result, err
	}

	user.UpdateTime = time.Now().Unix()
	for _, scope := range scopes {
		found := false
		for _, existing := range user.Scopes {
			if existing == scope {
				found = true
				break
			}
		}
		if !found {
			user.Scopes = append(user.Scopes, scope)
		}
	}

	return u.Update(ctx, user.ID, user)
}

// RemoveScopes revokes the provided scopes from the specified user resource.
func (u *UserManager) RemoveScopes(ctx context.Context, userID string, scopes []string) (result oidc.User, err error) {
	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, u.DB)
		if err != nil {
			return result, err
		}
		defer closeSession()
	}

	user, err := u.getConcrete(ctx, userID)
	if err != nil {
		return result, err
	}

	user.UpdateTime = time.Now().Unix()
	for _, scope := range scopes {
		for i, existing := range user.Scopes {
			if existing == scope {
				user.Scopes = append(user.Scopes[:i], user.Scopes[i+1:]...)
				break
			}
		}
	}

	return u.Update(ctx, user.ID, user)
}
