package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]string
	getErr error
	setErr error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

type fakeRow struct {
	body string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.body
	return nil
}

type fakePG struct {
	rows    map[string]string
	execErr error
	execs   []string
}

func newFakePG() *fakePG {
	return &fakePG{rows: make(map[string]string)}
}

func (f *fakePG) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	body, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{body: body}
}

func (f *fakePG) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if sql == upsertDocument {
		f.rows[args[0].(string)] = args[1].(string)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func sampleDocument() *Document {
	return &Document{Users: []User{
		{ID: 1, Name: StringPtr("A"), Email: StringPtr("a@x.com")},
		{ID: 2, Name: StringPtr("B")},
	}}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store fails to read", func(t *testing.T) {
		s, err := NewMemoryStore(nil)
		require.NoError(t, err)
		_, err = s.Read(ctx)
		var se *StorageError
		assert.True(t, errors.As(err, &se))
	})

	t.Run("read returns independent copies", func(t *testing.T) {
		s, err := NewMemoryStore(sampleDocument())
		require.NoError(t, err)

		first, err := s.Read(ctx)
		require.NoError(t, err)
		first.Users = append(first.Users, User{ID: 99})

		second, err := s.Read(ctx)
		require.NoError(t, err)
		assert.Len(t, second.Users, 2)
	})

	t.Run("round trip", func(t *testing.T) {
		s, err := NewMemoryStore(nil)
		require.NoError(t, err)
		require.NoError(t, s.Write(ctx, sampleDocument()))

		got, err := s.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleDocument(), got)
		assert.Contains(t, string(s.data), "\n  \"users\"")
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := NewRedisStore(newFakeRedis(), "usersd:document")
		_, err := s.Read(ctx)
		var se *StorageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "redis", se.Backend)
		assert.Contains(t, err.Error(), "usersd:document")
	})

	t.Run("round trip", func(t *testing.T) {
		client := newFakeRedis()
		s := NewRedisStore(client, "k")
		require.NoError(t, s.Write(ctx, sampleDocument()))

		got, err := s.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleDocument(), got)
		assert.Contains(t, client.values["k"], "\"email\": \"a@x.com\"")
	})

	t.Run("invalid json", func(t *testing.T) {
		client := newFakeRedis()
		client.values["k"] = "nope"
		_, err := NewRedisStore(client, "k").Read(ctx)
		assert.Error(t, err)
	})

	t.Run("write error", func(t *testing.T) {
		client := newFakeRedis()
		client.setErr = errors.New("connection refused")
		err := NewRedisStore(client, "k").Write(ctx, sampleDocument())
		var se *StorageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "write", se.Op)
	})

	t.Run("close", func(t *testing.T) {
		client := newFakeRedis()
		require.NoError(t, NewRedisStore(client, "k").Close())
		assert.True(t, client.closed)
	})
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	t.Run("migrate", func(t *testing.T) {
		conn := newFakePG()
		require.NoError(t, NewPostgresStore(conn, "default").Migrate(ctx))
		assert.Equal(t, []string{createDocumentsTable}, conn.execs)
	})

	t.Run("missing row", func(t *testing.T) {
		_, err := NewPostgresStore(newFakePG(), "default").Read(ctx)
		var se *StorageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "postgres", se.Backend)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("round trip", func(t *testing.T) {
		s := NewPostgresStore(newFakePG(), "default")
		require.NoError(t, s.Write(ctx, sampleDocument()))

		got, err := s.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleDocument(), got)
	})

	t.Run("exec error", func(t *testing.T) {
		conn := newFakePG()
		conn.execErr = errors.New("deadlock detected")
		err := NewPostgresStore(conn, "default").Write(ctx, sampleDocument())
		assert.ErrorContains(t, err, "deadlock detected")
	})
}

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: DriverMemory}, logger)
	require.NoError(t, err)
	doc, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Users)

	s, err = Open(ctx, Options{Driver: DriverFile, Path: "db.json"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, Options{Driver: "sqlite"}, logger)
	assert.Error(t, err)
}
