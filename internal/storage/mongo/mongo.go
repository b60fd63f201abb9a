// Package mongo is the MongoDB account directory.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/usuarios/internal/domain"
	internal_errors "github.com/itchan-dev/usuarios/internal/errors"
	"github.com/itchan-dev/usuarios/internal/logger"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	queryTimeout   = 5 * time.Second
	collectionName = "usuarios"
)

// userDocument is the stored shape of a user. PassHash is omitted when the
// listing projection drops it.
type userDocument struct {
	Id        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	PassHash  string    `bson:"password_hash,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func fromDomain(u domain.User) userDocument {
	return userDocument{Id: u.Id, Name: u.Name, Email: u.Email, PassHash: u.PassHash, CreatedAt: u.CreatedAt.UTC()}
}

func (d userDocument) toDomain() domain.User {
	return domain.User{Id: d.Id, Name: d.Name, Email: d.Email, PassHash: d.PassHash, CreatedAt: d.CreatedAt}
}

type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects to uri and makes sure the unique email index exists.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	logger.Log.Info("connecting to mongo", "database", database)
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Storage{client: client, users: client.Database(database).Collection(collectionName)}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}
	logger.Log.Info("connected to mongo")
	return s, nil
}

func (s *Storage) SaveUser(ctx context.Context, user domain.User) error {
	if user.Name == "" || user.Email == "" || user.PassHash == "" {
		return internal_errors.ValidationOrConflict("Invalid user", "name, email and password hash are required")
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.users.InsertOne(ctx, fromDomain(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return internal_errors.ValidationOrConflict("Email already registered", user.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Storage) User(ctx context.Context, email domain.Email) (domain.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *Storage) findOne(ctx context.Context, filter bson.D) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, internal_errors.NotFound("User not found")
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) UpdatePassword(ctx context.Context, id domain.UserId, passHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "password_hash", Value: passHash}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if result.MatchedCount == 0 {
		return internal_errors.NotFound("User not found for password update")
	}
	return nil
}

// Users lists every account; the projection keeps hashes on the server.
func (s *Storage) Users(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().
		SetProjection(listingProjection()).
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.users.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	users := make([]domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

func listingProjection() bson.D {
	return bson.D{{Key: "password_hash", Value: 0}}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Storage) Cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
