// Package mongodb implements db.Database on top of MongoDB. Every WriteTx is
// committed inside a MongoDB session transaction, so the server must run as a
// replica set.
package mongodb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/vocdoni/zkvote-node/db"
	"github.com/vocdoni/zkvote-node/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// MongodbTimeoutConnect is the timeout for connecting to the database
	MongodbTimeoutConnect = 10 * time.Second
	// MongodbTimeoutCommit is the timeout for committing a batch transaction
	MongodbTimeoutCommit = 12 * time.Second
	// MongodbTimeoutQuery is the timeout for querying the database
	MongodbTimeoutQuery = 4 * time.Second

	collectionName = "kv"
)

// MongoDB is a MongoDB implementation of the db.Database interface
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// KeyVal is the document stored for every key. Keys are hex encoded so the
// byte ordering of the original keys is preserved by the string index.
type KeyVal struct {
	Key   string `bson:"_id" json:"key"`
	Value []byte `bson:"value" json:"value"`
}

// check that MongoDB implements the db.Database interface
var _ db.Database = (*MongoDB)(nil)

// New connects to the server at $MONGODB_URL. The path option selects the
// database name, hashed to avoid invalid characters.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		return nil, fmt.Errorf("missing MONGODB_URL env var")
	}
	name := fmt.Sprintf("%x", sha256.Sum256([]byte(opts.Path)))[:12]
	log.Debugw("connecting to mongo database", "url", url, "database", name)

	ctx, cancel := context.WithTimeout(context.Background(), MongodbTimeoutConnect)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url).SetMaxConnecting(20))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("cannot connect to mongodb: %w", err)
	}
	return &MongoDB{client: client, db: client.Database(name)}, nil
}

// Close disconnects the client.
func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// WriteTx returns a write transaction buffering its writes in memory until
// Commit.
func (d *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{
		mdb:   d,
		inMem: make(map[string]*[]byte),
	}
}

// Get implements the db.Reader.Get interface method
func (d *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), MongodbTimeoutQuery)
	defer cancel()
	var result KeyVal
	err := d.collection().FindOne(ctx, bson.M{"_id": hex.EncodeToString(key)}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// Iterate implements the db.Reader.Iterate interface method
func (d *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.iterate(prefix, nil, callback)
}

// Compact is a no-op, MongoDB handles compaction by itself.
func (d *MongoDB) Compact() error {
	return nil
}

func (d *MongoDB) collection() *mongo.Collection {
	return d.db.Collection(collectionName)
}

// iterate walks the stored keys under prefix in order. Keys present in
// overlay take their value from it, nil overlay entries are hidden, and
// overlay keys missing from the collection are merged in order.
func (d *MongoDB) iterate(prefix []byte, overlay map[string]*[]byte, callback func(key, value []byte) bool) error {
	filter := bson.M{}
	if len(prefix) > 0 {
		rng := bson.M{"$gte": hex.EncodeToString(prefix)}
		if upper := db.PrefixUpperBound(prefix); upper != nil {
			rng["$lt"] = hex.EncodeToString(upper)
		}
		filter = bson.M{"_id": rng}
	}
	ctx, cancel := context.WithTimeout(context.Background(), MongodbTimeoutQuery)
	defer cancel()
	cursor, err := d.collection().Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	entries := make(map[string][]byte)
	for cursor.Next(ctx) {
		var kv KeyVal
		if err := cursor.Decode(&kv); err != nil {
			return err
		}
		key, err := hex.DecodeString(kv.Key)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", kv.Key, err)
		}
		entries[string(key)] = kv.Value
	}
	if err := cursor.Err(); err != nil {
		return err
	}
	for k, v := range overlay {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = *v
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k[len(prefix):]), entries[k]) {
			break
		}
	}
	return nil
}

// check that WriteTx implements the db.WriteTx interface
var _ db.WriteTx = (*WriteTx)(nil)

// WriteTx implements db.WriteTx for MongoDB.
type WriteTx struct {
	mdb   *MongoDB
	inMem map[string]*[]byte
	done  bool
}

// Get implements the db.WriteTx.Get interface method
func (tx *WriteTx) Get(k []byte) ([]byte, error) {
	if v, ok := tx.inMem[string(k)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return slices.Clone(*v), nil
	}
	return tx.mdb.Get(k)
}

// Iterate implements the db.WriteTx.Iterate interface method
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return tx.mdb.iterate(prefix, tx.inMem, callback)
}

// Set implements the db.WriteTx.Set interface method
func (tx *WriteTx) Set(k, v []byte) error {
	vcopy := slices.Clone(v)
	tx.inMem[string(k)] = &vcopy
	return nil
}

// Delete implements the db.WriteTx.Delete interface method
func (tx *WriteTx) Delete(k []byte) error {
	tx.inMem[string(k)] = nil
	return nil
}

// Apply implements the db.WriteTx.Apply interface method
func (tx *WriteTx) Apply(other db.WriteTx) error {
	otherMongo, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T into a mongodb tx", other)
	}
	for k, v := range otherMongo.inMem {
		tx.inMem[k] = v
	}
	return nil
}

// Commit applies every pending write inside one session transaction.
func (tx *WriteTx) Commit() error {
	if tx.done {
		return fmt.Errorf("cannot commit mongodb tx: already committed or discarded")
	}
	tx.done = true
	if len(tx.inMem) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.inMem))
	for k, v := range tx.inMem {
		id := hex.EncodeToString([]byte(k))
		if v == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
			continue
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"value": *v}}).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), MongodbTimeoutCommit)
	defer cancel()
	session, err := tx.mdb.client.StartSession()
	if err != nil {
		return fmt.Errorf("cannot start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return tx.mdb.collection().BulkWrite(sc, models)
	})
	return err
}

// Discard implements the db.WriteTx.Discard interface method
func (tx *WriteTx) Discard() {
	tx.inMem = make(map[string]*[]byte)
	tx.done = true
}
