package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/libraryops/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	booksCollection      = "allBooks"
	categoriesCollection = "categories"
	borrowsCollection    = "borrowBooks"
)

var ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")

// MongoConfig configures the document store client.
type MongoConfig struct {
	ConnectionURL  string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	RetryAttempts  int
	RetryInterval  time.Duration
}

// Mongo is a Store backed by a MongoDB replica set. Borrow and Return run in
// multi-document transactions, so a standalone server is not supported.
type Mongo struct {
	client     *mongo.Client
	books      *mongo.Collection
	categories *mongo.Collection
	borrows    *mongo.Collection
	now        func() time.Time
}

type bookDoc struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	domain.Book `bson:",inline"`
}

func (d bookDoc) book() domain.Book {
	b := d.Book
	b.ID = d.ID.Hex()
	return b
}

type categoryDoc struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	domain.Category `bson:",inline"`
}

type borrowDoc struct {
	ID                  bson.ObjectID `bson:"_id,omitempty"`
	BookID              bson.ObjectID `bson:"book_id"`
	domain.BorrowRecord `bson:",inline"`
}

func (d borrowDoc) record() domain.BorrowRecord {
	rec := d.BorrowRecord
	rec.ID = d.ID.Hex()
	rec.BookID = d.BookID.Hex()
	return rec
}

// NewMongo connects with retries and returns a store bound to cfg.Database.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	attempts := max(cfg.RetryAttempts, 1)
	for i := range attempts {
		client, err := mongo.Connect(
			options.Client().
				ApplyURI(cfg.ConnectionURL).
				SetConnectTimeout(cfg.ConnectTimeout).
				SetMaxPoolSize(cfg.MaxPoolSize).
				SetRetryWrites(true).
				SetRetryReads(true),
		)
		if err == nil {
			if err = client.Ping(ctx, readpref.Primary()); err == nil {
				return newMongo(client, cfg.Database), nil
			}
			_ = client.Disconnect(ctx)
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, errors.Join(ErrFailedToConnectToMongo, ctx.Err())
			case <-time.After(cfg.RetryInterval):
			}
		}
	}
	return nil, ErrFailedToConnectToMongo
}

func newMongo(client *mongo.Client, database string) *Mongo {
	db := client.Database(database)
	return &Mongo{
		client:     client,
		books:      db.Collection(booksCollection),
		categories: db.Collection(categoriesCollection),
		borrows:    db.Collection(borrowsCollection),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes the store relies on. The unique
// (book_id, email) index backs the one-active-borrow rule.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.borrows.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "book_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_book_email"),
		},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("borrow indexes: %w", err)
	}
	_, err = s.books.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}})
	if err != nil {
		return fmt.Errorf("book indexes: %w", err)
	}
	return nil
}

func (s *Mongo) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func parseObjectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, domain.Validationf("malformed id %q", id)
	}
	return oid, nil
}

func (s *Mongo) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, error) {
	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	cur, err := s.books.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	books := make([]domain.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, d.book())
	}
	return books, nil
}

func (s *Mongo) GetBook(ctx context.Context, id string) (domain.Book, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Book{}, err
	}
	var doc bookDoc
	err = s.books.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Book{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}
	return doc.book(), nil
}

func (s *Mongo) InsertBook(ctx context.Context, in domain.BookInput) (string, error) {
	doc := bookDoc{ID: bson.NewObjectID(), Book: newBook("", in, s.now())}
	if _, err := s.books.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("book insert failed: %w", err)
	}
	return doc.ID.Hex(), nil
}

// rebaseStage sets the quantity to q and shifts available by the same delta,
// clamped to [0, q]. A document without a quantity (fresh upsert) starts full.
func rebaseStage(q int, now time.Time, extra bson.M) mongo.Pipeline {
	set := bson.M{
		"available": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$type": "$quantity"}, "missing"}},
			q,
			bson.M{"$max": bson.A{0, bson.M{"$min": bson.A{
				q,
				bson.M{"$add": bson.A{"$available", bson.M{"$subtract": bson.A{q, "$quantity"}}}},
			}}}},
		}},
		"quantity":   q,
		"updated_at": now,
	}
	for k, v := range extra {
		set[k] = v
	}
	return mongo.Pipeline{bson.D{{Key: "$set", Value: set}}}
}

// literal keeps a client value from being read as a field path or variable
// inside an aggregation pipeline.
func literal(v any) bson.M {
	return bson.M{"$literal": v}
}

// upsertStage replaces the descriptive fields of a book and rebases its
// counters in one pipeline update.
func upsertStage(in domain.BookInput, now time.Time) mongo.Pipeline {
	return rebaseStage(in.Quantity, now, bson.M{
		"title":       literal(in.Title),
		"author":      literal(in.Author),
		"category":    literal(in.Category),
		"image":       literal(in.Image),
		"rating":      literal(in.Rating),
		"description": literal(in.Description),
		"created_at":  bson.M{"$ifNull": bson.A{"$created_at", now}},
	})
}

func (s *Mongo) UpsertBook(ctx context.Context, id string, in domain.BookInput) (domain.Book, bool, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Book{}, false, err
	}
	res, err := s.books.UpdateOne(ctx, bson.M{"_id": oid}, upsertStage(in, s.now()), options.UpdateOne().SetUpsert(true))
	if err != nil {
		return domain.Book{}, false, fmt.Errorf("book upsert failed: %w", err)
	}
	b, err := s.GetBook(ctx, id)
	if err != nil {
		return domain.Book{}, false, err
	}
	return b, res.UpsertedCount > 0, nil
}

func (s *Mongo) SetQuantity(ctx context.Context, id string, quantity int) (domain.Book, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Book{}, err
	}
	var doc bookDoc
	err = s.books.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		rebaseStage(quantity, s.now(), nil),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Book{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Book{}, err
	}
	return doc.book(), nil
}

func (s *Mongo) transact(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("session start failed: %w", err)
	}
	defer sess.EndSession(ctx)
	return sess.WithTransaction(ctx, fn)
}

// Borrow takes a copy with a conditional decrement (available > 0) and
// records the loan in the same transaction. Concurrent borrows of the last
// copy conflict on the book document; the retried loser sees available == 0.
func (s *Mongo) Borrow(ctx context.Context, in domain.BorrowInput) (domain.BorrowRecord, error) {
	bookID, err := parseObjectID(in.BookID)
	if err != nil {
		return domain.BorrowRecord{}, err
	}

	out, err := s.transact(ctx, func(ctx context.Context) (any, error) {
		active, err := s.borrows.CountDocuments(ctx, bson.M{"book_id": bookID, "email": in.Email})
		if err != nil {
			return nil, err
		}
		if active > 0 {
			return nil, domain.ErrAlreadyBorrowed
		}

		now := s.now()
		err = s.books.FindOneAndUpdate(ctx,
			bson.M{"_id": bookID, "available": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"available": -1}, "$set": bson.M{"updated_at": now}},
		).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, cerr := s.books.CountDocuments(ctx, bson.M{"_id": bookID})
			if cerr != nil {
				return nil, cerr
			}
			if n == 0 {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrOutOfStock
		}
		if err != nil {
			return nil, err
		}

		doc := borrowDoc{
			ID:     bson.NewObjectID(),
			BookID: bookID,
			BorrowRecord: domain.BorrowRecord{
				Email:      in.Email,
				Name:       in.Name,
				BorrowedAt: now,
				DueAt:      in.DueAt,
			},
		}
		if _, err := s.borrows.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, domain.ErrAlreadyBorrowed
			}
			return nil, err
		}
		return doc.record(), nil
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	return out.(domain.BorrowRecord), nil
}

// Return deletes the record and increments available, capped at quantity.
func (s *Mongo) Return(ctx context.Context, recordID string) (domain.BorrowRecord, error) {
	oid, err := parseObjectID(recordID)
	if err != nil {
		return domain.BorrowRecord{}, err
	}

	out, err := s.transact(ctx, func(ctx context.Context) (any, error) {
		var doc borrowDoc
		err := s.borrows.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, err
		}

		capped := mongo.Pipeline{bson.D{{Key: "$set", Value: bson.M{
			"available":  bson.M{"$min": bson.A{bson.M{"$add": bson.A{"$available", 1}}, "$quantity"}},
			"updated_at": s.now(),
		}}}}
		if _, err := s.books.UpdateOne(ctx, bson.M{"_id": doc.BookID}, capped); err != nil {
			return nil, err
		}
		return doc.record(), nil
	})
	if err != nil {
		return domain.BorrowRecord{}, err
	}
	return out.(domain.BorrowRecord), nil
}

func (s *Mongo) ListBorrows(ctx context.Context, email string) ([]domain.BorrowRecord, error) {
	cur, err := s.borrows.Find(ctx, bson.M{"email": email},
		options.Find().SetSort(bson.D{{Key: "borrowed_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []borrowDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode borrows: %w", err)
	}
	out := make([]domain.BorrowRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (s *Mongo) InsertCategory(ctx context.Context, in domain.CategoryInput) (string, error) {
	doc := categoryDoc{
		ID: bson.NewObjectID(),
		Category: domain.Category{
			Name:        in.Name,
			Description: in.Description,
			Image:       in.Image,
		},
	}
	if _, err := s.categories.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("category insert failed: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (s *Mongo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cur, err := s.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]domain.Category, 0, len(docs))
	for _, d := range docs {
		c := d.Category
		c.ID = d.ID.Hex()
		out = append(out, c)
	}
	return out, nil
}
