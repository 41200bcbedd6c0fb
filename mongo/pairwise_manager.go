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

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// PairwiseManager provides a mongo backed implementation for persistent
// pairwise subject mappings. Algorithmic deployments never touch it.
//
// Implements:
// - oidc.Configure
// - oidc.PairwiseStore
// - oidc.PairwiseManager
type PairwiseManager struct {
	DB *DB
}

// Configure implements oidc.Configure. The unique compound index guarantees
// at most one subject per (sector, user) pair, racing creators collapse onto
// one record.
func (p *PairwiseManager) Configure(ctx context.Context) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityPairwiseSubjects,
		"method":     "Configure",
	})

	indices := []mongo.IndexModel{
		NewUniqueIndex(IdxSectorUser, "sector_identifier", "user_id"),
	}

	collection := p.DB.Collection(oidc.EntityPairwiseSubjects)
	_, err = collection.Indexes().CreateMany(ctx, indices)
	if err != nil {
		log.WithError(err).Error(logError)
		return err
	}

	return nil
}

// Create stores a new pairwise subject mapping.
func (p *PairwiseManager) Create(ctx context.Context, mapping oidc.PairwiseSubjectMapping) (result oidc.PairwiseSubjectMapping, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityPairwiseSubjects,
		"method":     "Create",
	})

	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreateTime == 0 {
		mapping.CreateTime = time.Now().Unix()
	}

	collection := p.DB.Collection(oidc.EntityPairwiseSubjects)
	_, err = collection.InsertOne(ctx, mapping)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.WithError(err).Debug(logConflict)
			return result, oidc.ErrResourceExists
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return mapping, nil
}

// GetBySectorUser returns the mapping for the (sector, user) pair.
func (p *PairwiseManager) GetBySectorUser(ctx context.Context, sectorIdentifier, userID string) (result oidc.PairwiseSubjectMapping, err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityPairwiseSubjects,
		"method":     "GetBySectorUser",
		"sector":     sectorIdentifier,
		"userID":     userID,
	})

	// Build Query
	query := bson.M{
		"sector_identifier": sectorIdentifier,
		"user_id":           userID,
	}

	var mapping oidc.PairwiseSubjectMapping
	collection := p.DB.Collection(oidc.EntityPairwiseSubjects)
	err = collection.FindOne(ctx, query).Decode(&mapping)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			log.WithError(err).Debug(logNotFound)
			return result, oidc.ErrNotFound
		}

		log.WithError(err).Error(logError)
		return result, err
	}

	return mapping, nil
}

// Delete removes the stored mapping by id.
func (p *PairwiseManager) Delete(ctx context.Context, id string) (err error) {
	log := logger.WithFields(logrus.Fields{
		"package":    "mongo",
		"collection": oidc.EntityPairwiseSubjects,
		"method":     "Delete",
		"id":         id,
	})

	// Build Query
	query := bson.M{
		"id": id,
	}

	collection := p.DB.Collection(oidc.EntityPairwiseSubjects)
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
