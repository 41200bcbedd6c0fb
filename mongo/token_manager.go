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

// TokenManager provides a mongo backed implementation for authorization
// codes, access tokens and refresh tokens, including the cascading
// invalidation verbs the protocol engine relies on.
//
// Implements:
// - oidc.Configure
// - oidc.TokenStore
// - oidc.TokenManager
type TokenManager struct {
	DB *DB
}

// Configure implements oidc.Configure.
func (t *TokenManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package": "mongo",
		"method":  "Configure",
	})

	codeIndices := []mongo.IndexModel{
		NewUniqueIndex(IdxSignatureID, "signature"),
		NewIndex(IdxGrantID, "grant_id"),
		NewIndex(IdxExpires, "expire_time"),
	}
	collection := t.DB.Collection(oidc.EntityAuthorizationCodes)
	_, err = collection.Indexes().CreateMany(ctx, codeIndices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	tokenIndices := []mongo.IndexModel{
		NewUniqueIndex(IdxSignatureID, "signature"),
		NewIndex(IdxGrantID, "grant_id"),
		NewIndex(IdxIssuanceID, "issuance_id"),
		NewIndex(IdxCodeSignature, "code_signature"),
		NewIndex(IdxExpires, "expire_time"),
	}
	for _, entityName := range []string{oidc.EntityAccessTokens, oidc.EntityRefreshTokens} {
		collection = t.DB.Collection(entityName)
		_, err = collection.Indexes().CreateMany(ctx, tokenIndices)
		if err != nil {
			log.WithError(err).Error(logError)
			return err
		}
	}

	return nil
}

// CreateAuthorizationCode stores a new authorization code.
func (t *TokenManager) CreateAuthorizationCode(ctx context.Context, code oidc.AuthorizationCode) (result oidc.AuthorizationCode, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationCodes,
		"method":     "CreateAuthorizationCode",
	})

	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	if code.CreateTime == 0 {
		code.CreateTime = time.Now().Unix()
	}

	collection := t.DB.Collection(oidc.EntityAuthorizationCodes)
	_, err = collection.InsertOne(ctx, code)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return code, nil
}

// GetAuthorizationCode returns the stored authorization code for the given
// signature.
func (t *TokenManager) GetAuthorizationCode(ctx context.Context, signature string) (result oidc.AuthorizationCode, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationCodes,
		"method":     "GetAuthorizationCode",
	})

	// Build Query
	query := bson.M{
		"signature": signature,
	}

	var code oidc.AuthorizationCode
	collection := t.DB.Collection(oidc.EntityAuthorizationCodes)
	err = collection.FindOne(ctx, query).Decode(&code)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return code, nil
}

// ConsumeAuthorizationCode atomically marks the code used. Exactly one
// concurrent caller wins the update; later callers receive
// ErrCodeAlreadyUsed together with the stored record so they can trigger
// containment.
func (t *TokenManager) ConsumeAuthorizationCode(ctx context.Context, signature string) (result oidc.AuthorizationCode, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityAuthorizationCodes,
		"method":     "ConsumeAuthorizationCode",
	})

	// Build Query
	query := bson.M{
		"signature": signature,
		"used":      false,
	}
	update := bson.M{
		"$set": bson.M{
			"used": true,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var code oidc.AuthorizationCode
	collection := t.DB.Collection(oidc.EntityAuthorizationCodes)
	err = collection.FindOneAndUpdate(ctx, query, update, opts).Decode(&code)
	if err == nil {
		return code, nil
	}
	if err != mongo.ErrNoDocuments {
		log.WithError(err).Error(logError)
		return result, err
	}

	// Lost the race, or the code never existed. Re-read without the used
	// guard to tell the two apart.
	code, err = t.GetAuthorizationCode(ctx, signature)
	if err != nil {
		if err == oidc.ErrNotFound {
			log.Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	log.Debug("authorization code replayed")
	return code, oidc.ErrCodeAlreadyUsed
}

// DeleteAuthorizationCode removes the stored authorization code for the
// given signature.
func (t *TokenManager) DeleteAuthorizationCode(ctx context.Context, signature string) (err error) {
	return t.deleteBySignature(ctx, oidc.EntityAuthorizationCodes, signature)
}

// CreateAccessToken stores a new access token.
func (t *TokenManager) CreateAccessToken(ctx context.Context, token oidc.Token) (result oidc.Token, err error) {
	return t.createToken(ctx, oidc.EntityAccessTokens, token)
}

// GetAccessToken returns the stored access token for the given signature.
func (t *TokenManager) GetAccessToken(ctx context.Context, signature string) (result oidc.Token, err error) {
	return t.getToken(ctx, oidc.EntityAccessTokens, signature)
}

// RevokeAccessToken deactivates the stored access token for the given
// signature.
func (t *TokenManager) RevokeAccessToken(ctx context.Context, signature string) (err error) {
	return t.revokeBySignature(ctx, oidc.EntityAccessTokens, signature)
}

// DeleteAccessToken removes the stored access token for the given signature.
func (t *TokenManager) DeleteAccessToken(ctx context.Context, signature string) (err error) {
	return t.deleteBySignature(ctx, oidc.EntityAccessTokens, signature)
}

// CreateRefreshToken stores a new refresh token.
func (t *TokenManager) CreateRefreshToken(ctx context.Context, token oidc.Token) (result oidc.Token, err error) {
	return t.createToken(ctx, oidc.EntityRefreshTokens, token)
}

// GetRefreshToken returns the stored refresh token for the given signature.
func (t *TokenManager) GetRefreshToken(ctx context.Context, signature string) (result oidc.Token, err error) {
	return t.getToken(ctx, oidc.EntityRefreshTokens, signature)
}

// RevokeRefreshToken deactivates the stored refresh token for the given
// signature.
func (t *TokenManager) RevokeRefreshToken(ctx context.Context, signature string) (err error) {
	return t.revokeBySignature(ctx, oidc.EntityRefreshTokens, signature)
}

// DeleteRefreshToken removes the stored refresh token for the given
// signature.
func (t *TokenManager) DeleteRefreshToken(ctx context.Context, signature string) (err error) {
	return t.deleteBySignature(ctx, oidc.EntityRefreshTokens, signature)
}

// RotateRefreshToken atomically retires the presented refresh token and
// stores its replacement. A token that is already inactive cannot be
// rotated.
func (t *TokenManager) RotateRefreshToken(ctx context.Context, oldSignature string, replacement oidc.Token) (result oidc.Token, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityRefreshTokens,
		"method":     "RotateRefreshToken",
	})

	// Copy a new DB session if none specified
	_, ok := ContextToSession(ctx)
	if !ok {
		var closeSession func()
		ctx, closeSession, err = newSession(ctx, t.DB)
		if err != nil {
			log.WithError(err).Error(logError)
			return result, err
		}
		defer closeSession()
	}

	// Build Query
	query := bson.M{
		"signature": oldSignature,
		"active":    true,
	}
	update := bson.M{
		"$set": bson.M{
			"active": false,
		},
	}

	collection := t.DB.Collection(oidc.EntityRefreshTokens)
	res, err := collection.UpdateOne(ctx, query, update)
	if err != nil {
		log.WithError(err).Error(logError)
		return result, err
	}

	if res.MatchedCount == 0 {
		// Tell a missing token apart from an already retired one.
		_, getErr := t.getToken(ctx, oidc.EntityRefreshTokens, oldSignature)
		if getErr != nil {
			log.Debug(logNotFound)
			return result, getErr
		}
		log.Debug("refresh token already retired")
		return result, oidc.ErrTokenInactive
	}

	return t.createToken(ctx, oidc.EntityRefreshTokens, replacement)
}

// RevokeByGrantID deactivates every access and refresh token of the given
// grant lineage.
func (t *TokenManager) RevokeByGrantID(ctx context.Context, grantID string) (err error) {
	return t.revokeWhere(ctx, bson.M{"grant_id": grantID})
}

// RevokeByIssuanceID deactivates the sibling tokens minted together in a
// single issuance event.
func (t *TokenManager) RevokeByIssuanceID(ctx context.Context, issuanceID string) (err error) {
	return t.revokeWhere(ctx, bson.M{"issuance_id": issuanceID})
}

// RevokeByCodeSignature deactivates every token descended from the given
// authorization code.
func (t *TokenManager) RevokeByCodeSignature(ctx context.Context, codeSignature string) (err error) {
	return t.revokeWhere(ctx, bson.M{"code_signature": codeSignature})
}

// createToken stores a token in the given entity collection.
func (t *TokenManager) createToken(ctx context.Context, entityName string, token oidc.Token) (result oidc.Token, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": entityName,
		"method":     "createToken",
	})

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreateTime == 0 {
		token.CreateTime = time.Now().Unix()
	}

	collection := t.DB.Collection(entityName)
	_, err = collection.InsertOne(ctx, token)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return token, nil
}

// getToken returns a token from the given entity collection.
func (t *TokenManager) getToken(ctx context.Context, entityName string, signature string) (result oidc.Token, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": entityName,
		"method":     "getToken",
	})

	// Build Query
	query := bson.M{
		"signature": signature,
	}

	var token oidc.Token
	collection := t.DB.Collection(entityName)
	err = collection.FindOne(ctx, query).Decode(&token)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return token, nil
}

// revokeBySignature deactivates a single token in the given entity
// collection.
func (t *TokenManager) revokeBySignature(ctx context.Context, entityName string, signature string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": entityName,
		"method":     "revokeBySignature",
	})

	// Build Query
	query := bson.M{
		"signature": signature,
	}
	update := bson.M{
		"$set": bson.M{
			"active": false,
		},
	}

	collection := t.DB.Collection(entityName)
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

// revokeWhere deactivates every access and refresh token matching the query.
// Finding no matches is not an error, the cascade verbs are idempotent.
func (t *TokenManager) revokeWhere(ctx context.Context, query bson.M) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package": "mongo",
		"method":  "revokeWhere",
	})

	update := bson.M{
		"$set": bson.M{
			"active": false,
		},
	}

	for _, entityName := range []string{oidc.EntityAccessTokens, oidc.EntityRefreshTokens} {
		collection := t.DB.Collection(entityName)
		_, err = collection.UpdateMany(ctx, query, update)
		if err != nil {
			log.WithError(err).Error(logError)
			return err
		}
	}

	return nil
}

// deleteBySignature removes a record from the given entity collection.
func (t *TokenManager) deleteBySignature(ctx context.Context, entityName string, signature string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": entityName,
		"method":     "deleteBySignature",
	})

	// Build Query
	query := bson.M{
		"signature": signature,
	}

	collection := t.DB.Collection(entityName)
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
