// Package mongo provides a MongoDB backed implementation of the storage
// managers the protocol engine consumes. Multi-step operations copy a mongo
// session into the context so reads observe their own writes.
package mongo

import (
	// Standard Library Imports
	"context"
	"fmt"
	"strings"
	"time"

	// External Imports
	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// logger provides a package scoped logger. Nothing is logged until a consumer
// injects one via SetLogger.
var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
}

// SetLogger enables datastore layer logging with the provided logger.
func SetLogger(log *logrus.Logger) {
	logger = log
}

// SetDebug lowers the logging level to debug.
func SetDebug(debug bool) {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
}

// Shared log messages.
const (
	logError    = "error"
	logNotFound = "not found"
	logConflict = "conflict"
)

// Index name constants.
const (
	IdxClientID      = "idxClientID"
	IdxSoftwareID    = "idxSoftwareID"
	IdxGrantID       = "idxGrantID"
	IdxGrantTriple   = "idxGrantTriple"
	IdxSignatureID   = "idxSignatureID"
	IdxIssuanceID    = "idxIssuanceID"
	IdxCodeSignature = "idxCodeSignature"
	IdxExpires       = "idxExpires"
	IdxSectorUser    = "idxSectorUser"
	IdxSessionID     = "idxSessionID"
	IdxUserID        = "idxUserID"
	IdxUsername      = "idxUsername"
)

// NewIndex generates a new index model, ready to be saved in mongo.
//
// Note:
// - Prefix a key with a dash `-` to have the index sort descending.
func NewIndex(name string, keys ...string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    generateIndexKeys(keys...),
		Options: options.Index().SetName(name),
	}
}

// NewUniqueIndex generates a new unique index model, ready to be saved in
// mongo.
func NewUniqueIndex(name string, keys ...string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    generateIndexKeys(keys...),
		Options: options.Index().SetName(name).SetUnique(true),
	}
}

// generateIndexKeys maps a list of dot notation keys into a mongo compatible
// index document.
func generateIndexKeys(keys ...string) (indexKeys bson.D) {
	for _, key := range keys {
		if strings.HasPrefix(key, "-") {
			indexKeys = append(indexKeys, bson.E{Key: strings.TrimPrefix(key, "-"), Value: int32(-1)})
			continue
		}
		indexKeys = append(indexKeys, bson.E{Key: key, Value: int32(1)})
	}
	return indexKeys
}

// Config defines how to connect to a mongo deployment.
type Config struct {
	Hostnames    []string `json:"hostnames" xml:"hostnames"`
	Port         uint16   `json:"port" xml:"port"`
	SSL          bool     `json:"ssl" xml:"ssl"`
	AuthDB       string   `json:"auth_db" xml:"auth_db"`
	Username     string   `json:"username" xml:"username"`
	Password     string   `json:"password" xml:"password"`
	DatabaseName string   `json:"database_name" xml:"database_name"`
	Replset      string   `json:"replset" xml:"replset"`

	// Timeout bounds initial connection and per-operation deadlines, in
	// seconds. Defaults to 10 when unset.
	Timeout uint `json:"timeout" xml:"timeout"`

	PoolMinSize uint64 `json:"pool_min_size" xml:"pool_min_size"`
	PoolMaxSize uint64 `json:"pool_max_size" xml:"pool_max_size"`
}

// DefaultConfig returns a configuration for a locally hosted, unsecured
// mongo deployment.
func DefaultConfig() *Config {
	return &Config{
		Hostnames:    []string{"localhost"},
		Port:         27017,
		DatabaseName: "oidcServer",
	}
}

// ConnectionURI generates a mongo connection URI from the provided config.
func ConnectionURI(cfg *Config) string {
	connectionString := "mongodb://"
	credentials := ""
	if cfg.Username != "" && cfg.Password != "" {
		credentials = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	hosts := make([]string, 0, len(cfg.Hostnames))
	for _, hostname := range cfg.Hostnames {
		hosts = append(hosts, fmt.Sprintf("%s:%d", hostname, cfg.Port))
	}

	connectionString = fmt.Sprintf("%s%s%s/%s",
		connectionString,
		credentials,
		strings.Join(hosts, ","),
		cfg.DatabaseName,
	)

	params := []string{}
	if cfg.Replset != "" {
		params = append(params, "replicaSet="+cfg.Replset)
	}
	if cfg.SSL {
		params = append(params, "ssl=true")
	}
	if cfg.AuthDB != "" {
		params = append(params, "authSource="+cfg.AuthDB)
	}
	if len(params) > 0 {
		connectionString = fmt.Sprintf("%s?%s", connectionString, strings.Join(params, "&"))
	}

	return connectionString
}

// DB wraps the mongo database handle so managers can resolve entity
// collections by name.
type DB struct {
	*mongo.Database
}

// Collection returns the collection backing the given entity.
func (d *DB) Collection(entityName string) *mongo.Collection {
	return d.Database.Collection(entityName)
}

// Store provides a mongo backed datastore, bundling one manager per entity
// behind the interfaces the protocol engine consumes.
type Store struct {
	DB      *DB
	Hasher  fosite.Hasher
	timeout time.Duration

	ClientManager   *ClientManager
	GrantManager    *GrantManager
	TokenManager    *TokenManager
	PairwiseManager *PairwiseManager
	SessionManager  *SessionManager
	UserManager     *UserManager
	DeniedJTIs      *DeniedJTIManager
}

// New returns a connected mongo datastore with collection indices in place.
// A nil hasher selects bcrypt.
func New(cfg *Config, hasher fosite.Hasher) (*Store, error) {
	timeout := 10 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	opts := options.Client().
		ApplyURI(ConnectionURI(cfg)).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if cfg.PoolMinSize > 0 {
		opts = opts.SetMinPoolSize(cfg.PoolMinSize)
	}
	if cfg.PoolMaxSize > 0 {
		opts = opts.SetMaxPoolSize(cfg.PoolMaxSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		logger.WithError(err).Error(logError)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err = client.Ping(ctx, readpref.Primary())
	if err != nil {
		logger.WithError(err).Error(logError)
		return nil, err
	}

	if hasher == nil {
		hasher = &fosite.BCrypt{Config: &fosite.Config{HashCost: fosite.DefaultBCryptWorkFactor}}
	}

	db := &DB{Database: client.Database(cfg.DatabaseName)}

	deniedJTIs := &DeniedJTIManager{DB: db}
	store := &Store{
		DB:      db,
		Hasher:  hasher,
		timeout: timeout,

		ClientManager: &ClientManager{
			DB:         db,
			Hasher:     hasher,
			DeniedJTIs: deniedJTIs,
		},
		GrantManager:    &GrantManager{DB: db},
		TokenManager:    &TokenManager{DB: db},
		PairwiseManager: &PairwiseManager{DB: db},
		SessionManager:  &SessionManager{DB: db},
		UserManager: &UserManager{
			DB:     db,
			Hasher: hasher,
		},
		DeniedJTIs: deniedJTIs,
	}

	err = store.Configure(ctx)
	if err != nil {
		logger.WithError(err).Error(logError)
		return nil, err
	}

	return store, nil
}

// Configure implements oidc.Configure for the whole store, building the
// indices each manager relies on.
func (s *Store) Configure(ctx context.Context) (err error) {
	configurers := []oidc.Configure{
		s.ClientManager,
		s.GrantManager,
		s.TokenManager,
		s.PairwiseManager,
		s.SessionManager,
		s.UserManager,
		s.DeniedJTIs,
	}
	for _, configurer := range configurers {
		err = configurer.Configure(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// NewSession copies a mongo session into the given context so consecutive
// datastore calls observe each other's writes. The returned closer must be
// called once the unit of work completes.
func (s *Store) NewSession(ctx context.Context) (context.Context, func(), error) {
	return newSession(ctx, s.DB)
}

// Close terminates the underlying mongo connection.
func (s *Store) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.DB.Client().Disconnect(ctx)
	if err != nil {
		logger.WithError(err).Error(logError)
	}
}

// ContextToSession returns the mongo session bound into the context, if one
// exists.
func ContextToSession(ctx context.Context) (*mongo.Session, bool) {
	session := mongo.SessionFromContext(ctx)
	return session, session != nil
}

// newSession starts a mongo session and binds it into the returned context.
func newSession(ctx context.Context, db *DB) (context.Context, func(), error) {
	session, err := db.Client().StartSession()
	if err != nil {
		logger.WithError(err).Error(logError)
		return ctx, nil, err
	}

	sessionCtx := mongo.NewSessionContext(ctx, session)
	closeSession := func() {
		session.EndSession(ctx)
	}
	return sessionCtx, closeSession, nil
}
