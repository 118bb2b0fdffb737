package store

import (
	"context"
	stderrors "errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/canopyhq/canopy/pkg/errors"
)

const mongoCollection = "items"

// MongoStore persists items in a MongoDB collection. Transactions require
// a replica-set deployment; standalone servers fail with STORAGE_TRANSACTION.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri, pings the primary, and binds the items
// collection in the named database.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect to %s", uri)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping %s", uri)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}, nil
}

// mongoField maps an index field name to the stored bson field.
func mongoField(field string) (string, bool) {
	switch field {
	case IndexKind:
		return "kind", true
	case IndexVault:
		return "vaultId", true
	case IndexName:
		return "name", true
	}
	return "", false
}

// Get implements [Tx].
func (s *MongoStore) Get(ctx context.Context, id string) (Item, error) {
	return mongoGet(ctx, s.coll, id)
}

// Put implements [Tx].
func (s *MongoStore) Put(ctx context.Context, item Item) error {
	return mongoPut(ctx, s.coll, item)
}

// Delete implements [Tx].
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	return mongoDelete(ctx, s.coll, id)
}

// QueryByIndex implements [Tx].
func (s *MongoStore) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	return mongoQuery(ctx, s.coll, field, value)
}

// Transaction implements [Store] with a driver session. All operations
// inside fn run on the session context; the per-call contexts passed to
// the Tx methods are superseded by it for the duration of the callback.
func (s *MongoStore) Transaction(ctx context.Context, mode Mode, tables []string, fn func(tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageTransaction, err, "start session")
	}
	defer sess.EndSession(ctx)

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if mode == ReadOnly {
			return fn(&mongoTx{coll: s.coll, sc: sc, readonly: true})
		}
		if err := sess.StartTransaction(); err != nil {
			return errors.Wrap(errors.ErrCodeStorageTransaction, err, "start transaction")
		}
		if err := fn(&mongoTx{coll: s.coll, sc: sc}); err != nil {
			_ = sess.AbortTransaction(sc)
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return errors.Wrap(errors.ErrCodeStorageTransaction, err, "commit transaction")
		}
		return nil
	})
}

// Close implements [Store].
func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

type mongoTx struct {
	coll     *mongo.Collection
	sc       mongo.SessionContext
	readonly bool
}

func (t *mongoTx) Get(ctx context.Context, id string) (Item, error) {
	return mongoGet(t.sc, t.coll, id)
}

func (t *mongoTx) Put(ctx context.Context, item Item) error {
	if t.readonly {
		return errors.New(errors.ErrCodeStorageTransaction, "put %s in a readonly transaction", item.ID)
	}
	return mongoPut(t.sc, t.coll, item)
}

func (t *mongoTx) Delete(ctx context.Context, id string) error {
	if t.readonly {
		return errors.New(errors.ErrCodeStorageTransaction, "delete %s in a readonly transaction", id)
	}
	return mongoDelete(t.sc, t.coll, id)
}

func (t *mongoTx) QueryByIndex(ctx context.Context, field, value string) ([]Item, error) {
	return mongoQuery(t.sc, t.coll, field, value)
}

func mongoGet(ctx context.Context, coll *mongo.Collection, id string) (Item, error) {
	var item Item
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return Item{}, errors.New(errors.ErrCodeNotFound, "item %s", id)
	}
	if err != nil {
		return Item{}, errors.Wrap(errors.ErrCodeStorageRead, err, "get item %s", id)
	}
	return item, nil
}

func mongoPut(ctx context.Context, coll *mongo.Collection, item Item) error {
	if item.ID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "item has no id")
	}
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": item.ID}, item, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "put item %s", item.ID)
	}
	return nil
}

func mongoDelete(ctx context.Context, coll *mongo.Collection, id string) error {
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, err, "delete item %s", id)
	}
	return nil
}

func mongoQuery(ctx context.Context, coll *mongo.Collection, field, value string) ([]Item, error) {
	name, ok := mongoField(field)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "field %q is not indexed", field)
	}
	cursor, err := coll.Find(ctx, bson.M{name: value})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "query items by %s", field)
	}
	defer cursor.Close(ctx)

	var out []Item
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, err, "decode items")
	}
	return out, nil
}
