package mongo

import (
	// Standard Library Imports
	"context"

	// External Imports
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// DeniedJTIManager provides a mongo backed implementation for denying JSON
// Web Tokens (JWTs) by ID.
//
// Implements:
// - oidc.Configure
// - oidc.DeniedJTIStore
// - oidc.DeniedJTIManager
type DeniedJTIManager struct {
	DB *DB
}

// Configure implements oidc.Configure.
func (d *DeniedJTIManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityJtiDenylist,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxSignatureID, "signature"),
		NewIndex(IdxExpires, "exp"),
	}

	collection := d.DB.Collection(oidc.EntityJtiDenylist)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// Create stores a new denied JTI resource.
func (d *DeniedJTIManager) Create(ctx context.Context, deniedJTI oidc.DeniedJTI) (result oidc.DeniedJTI, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityJtiDenylist,
		"method":     "Create",
	})

	collection := d.DB.Collection(oidc.EntityJtiDenylist)
	_, err = collection.InsertOne(ctx, deniedJTI)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return deniedJTI, nil
}

// Get returns the specified denied JTI resource.
func (d *DeniedJTIManager) Get(ctx context.Context, jti string) (result oidc.DeniedJTI, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityJtiDenylist,
		"method":     "Get",
		"jti":        jti,
	})

	// Build Query
	query := bson.M{
		"signature": jti,
	}

	var deniedJTI oidc.DeniedJTI
	collection := d.DB.Collection(oidc.EntityJtiDenylist)
	err = collection.FindOne(ctx, query).Decode(&deniedJTI)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return deniedJTI, nil
}

// Delete removes the specified denied JTI resource.
func (d *DeniedJTIManager) Delete(ctx context.Context, jti string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityJtiDenylist,
		"method":     "Delete",
		"jti":        jti,
	})

	// Build Query
	query := bson.M{
		"signature": jti,
	}

	collection := d.DB.Collection(oidc.EntityJtiDenylist)
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

// DeleteBefore removes all denied JTIs that expired before the given unix
// time. Finding nothing to clean out is not an error.
func (d *DeniedJTIManager) DeleteBefore(ctx context.Context, expBefore int64) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityJtiDenylist,
		"method":     "DeleteBefore",
		"expBefore":  expBefore,
	})

	// Build Query
	query := bson.M{
		"exp": bson.M{
			"$lt": expBefore,
		},
	}

	collection := d.DB.Collection(oidc.EntityJtiDenylist)
	_, err = collection.DeleteMany(ctx, query)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}
