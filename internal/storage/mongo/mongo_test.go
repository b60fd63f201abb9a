package mongo

import (
	"testing"
	"time"

	"github.com/itchan-dev/usuarios/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDocumentRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	user := domain.User{Id: "abc", Name: "Ana", Email: "ana@x.com", PassHash: "$2a$10$x", CreatedAt: created}

	raw, err := bson.Marshal(fromDomain(user))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "abc", fields["_id"])
	assert.Equal(t, "$2a$10$x", fields["password_hash"])

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toDomain()
	assert.Equal(t, user.Id, got.Id)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestListedDocumentHasNoHash(t *testing.T) {
	// what the server returns under listingProjection
	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "abc"},
		{Key: "name", Value: "Ana"},
		{Key: "email", Value: "ana@x.com"},
		{Key: "created_at", Value: time.Now()},
	})
	require.NoError(t, err)

	var doc userDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Empty(t, doc.toDomain().PassHash)

	assert.Equal(t, bson.D{{Key: "password_hash", Value: 0}}, listingProjection())
}

func TestEmptyHashIsNotStored(t *testing.T) {
	raw, err := bson.Marshal(userDocument{Id: "abc", Name: "Ana", Email: "ana@x.com"})
	require.NoError(t, err)
	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "password_hash")
}
