package acctstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/finboard/secguard"
)

// ErrBackend wraps driver-level failures so callers can distinguish an
// unreachable database from a missing account.
var ErrBackend = errors.New("account store backend unavailable")

// Mongo is an AccountRepository backed by a MongoDB collection. One
// document per account, keyed by the account ID.
type Mongo struct {
	collection *mongo.Collection
}

// MongoConfig carries connection settings for NewMongo.
type MongoConfig struct {
	// URI is the connection string, e.g. mongodb://host:27017.
	URI string
	// Database defaults to "secguard".
	Database string
	// Collection defaults to "accounts".
	Collection string
	// ConnectTimeout defaults to 10s.
	ConnectTimeout time.Duration
}

// NewMongo connects, pings, and ensures the unique indexes on email and
// login that the lookup paths rely on.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		return nil, errors.New("acctstore: mongo URI required")
	}
	if cfg.Database == "" {
		cfg.Database = "secguard"
	}
	if cfg.Collection == "" {
		cfg.Collection = "accounts"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	store := &Mongo{collection: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := store.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

// NewMongoCollection wraps an existing collection, for callers managing
// their own client lifecycle. No indexes are created.
func NewMongoCollection(collection *mongo.Collection) *Mongo {
	return &Mongo{collection: collection}
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "login", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Close disconnects the underlying client. No-op when the store wraps a
// caller-owned collection created through NewMongoCollection.
func (m *Mongo) Close(ctx context.Context) error {
	if m.collection == nil {
		return nil
	}
	client := m.collection.Database().Client()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*secguard.Account, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *Mongo) FindByEmail(ctx context.Context, email string) (*secguard.Account, error) {
	return m.findOne(ctx, bson.M{"email": email})
}

func (m *Mongo) FindByLogin(ctx context.Context, login string) (*secguard.Account, error) {
	return m.findOne(ctx, bson.M{"login": login})
}

func (m *Mongo) findOne(ctx context.Context, filter bson.M) (*secguard.Account, error) {
	var account secguard.Account
	err := m.collection.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, secguard.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return &account, nil
}

// Insert creates a new account document. The account must not exist.
func (m *Mongo) Insert(ctx context.Context, account *secguard.Account) error {
	account.Version = 1
	if _, err := m.collection.InsertOne(ctx, account); err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return nil
}

// Save replaces the account document guarded by the version the caller
// loaded. A concurrent writer that got there first makes the replace
// match nothing, which surfaces as ErrVersionConflict.
func (m *Mongo) Save(ctx context.Context, account *secguard.Account) error {
	next := *account
	next.Version = account.Version + 1

	res, err := m.collection.ReplaceOne(ctx,
		bson.M{"_id": account.ID, "version": account.Version},
		&next,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if res.MatchedCount == 0 {
		exists, err := m.collection.CountDocuments(ctx, bson.M{"_id": account.ID})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
		if exists == 0 {
			return secguard.ErrAccountNotFound
		}
		return ErrVersionConflict
	}
	account.Version = next.Version
	return nil
}
