package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"groupdesk/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/goleak"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		URI:            "mongodb://localhost:27017",
		Name:           "groupdesk_test",
		ConnectTimeout: time.Second,
	}
}

// unconnectedClient builds a client value without dialing a server.
func unconnectedClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://localhost:27017"))
	require.NoError(t, err)
	return client
}

func TestConnect_SharesSingleAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := unconnectedClient(t)
	var calls atomic.Int32
	release := make(chan struct{})

	db := New(testConfig(), WithConnectFunc(func(ctx context.Context, uri string) (*mongo.Client, error) {
		calls.Add(1)
		<-release
		return client, nil
	}))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*mongo.Client, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := db.Connect(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, c := range results {
		assert.Same(t, client, c)
	}

	c, err := db.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, client, c)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConnect_FailureIsNotCached(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := unconnectedClient(t)
	var calls atomic.Int32
	db := New(testConfig(), WithConnectFunc(func(ctx context.Context, uri string) (*mongo.Client, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("server selection timeout")
		}
		return client, nil
	}))

	_, err := db.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")

	c, err := db.Connect(context.Background())
	require.NoError(t, err)
	assert.Same(t, client, c)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnect_PassesURI(t *testing.T) {
	var got string
	db := New(testConfig(), WithConnectFunc(func(ctx context.Context, uri string) (*mongo.Client, error) {
		got = uri
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return unconnectedClient(t), nil
	}))

	_, err := db.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017", got)
}

func TestHealthCheck_NotConnected(t *testing.T) {
	db := New(testConfig())
	assert.ErrorIs(t, db.HealthCheck(context.Background()), ErrNotConnected)
}

func TestClose_WithoutClient(t *testing.T) {
	db := New(testConfig())
	assert.NoError(t, db.Close(context.Background()))
}

func TestEnsureIndexes_RunsOnce(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates indexes once", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		db := New(testConfig(), WithConnectFunc(func(ctx context.Context, uri string) (*mongo.Client, error) {
			return mt.Client, nil
		}))

		require.NoError(mt, db.EnsureIndexes(context.Background()))
		require.NoError(mt, db.EnsureIndexes(context.Background()))

		var collections []string
		for {
			evt := mt.GetStartedEvent()
			if evt == nil {
				break
			}
			if evt.CommandName == "createIndexes" {
				collections = append(collections, evt.Command.Lookup("createIndexes").StringValue())
			}
		}
		assert.Equal(mt, []string{UsersCollection, GroupsCollection, AuditCollection}, collections)
	})
}

func TestEnsureIndexes_ConnectError(t *testing.T) {
	db := New(testConfig(), WithConnectFunc(func(ctx context.Context, uri string) (*mongo.Client, error) {
		return nil, errors.New("refused")
	}))

	err := db.EnsureIndexes(context.Background())
	assert.ErrorContains(t, err, "refused")
}

func TestIndexes_UniqueUserKeys(t *testing.T) {
	indexes := Indexes(0)

	users := indexes[UsersCollection]
	require.Len(t, users, 4)
	assert.True(t, *users[0].Options.Unique)
	assert.True(t, *users[1].Options.Sparse)
	assert.True(t, *users[2].Options.Sparse)

	groups := indexes[GroupsCollection]
	require.Len(t, groups, 3)
	assert.Equal(t, "name_1", *groups[2].Options.Name)
	assert.True(t, *groups[2].Options.Unique)

	ttl := indexes[AuditCollection][0]
	assert.Equal(t, int32(90*24*3600), *ttl.Options.ExpireAfterSeconds)
}

func TestMigrationSource_ListsVersions(t *testing.T) {
	src, err := MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	r, identifier, err := src.ReadUp(3)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "create_audit_logs_ttl", identifier)

	last, err := src.Next(3)
	require.NoError(t, err)
	assert.Equal(t, uint(4), last)

	r4, identifier, err := src.ReadUp(last)
	require.NoError(t, err)
	defer r4.Close()
	assert.Equal(t, "create_groups_name_unique", identifier)
}
