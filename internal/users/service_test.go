package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradyx/backoffice/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	users    map[int64]User
	hashes   map[int64]string
	sales    map[int64]int64 // sale id -> user id
	nextID   int64
	calls    int
	failStep string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), hashes: make(map[int64]string), sales: make(map[int64]int64), nextID: 1}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	tx := &memoryTx{repo: r, users: make(map[int64]User), sales: make(map[int64]int64)}
	for k, v := range r.users {
		tx.users[k] = v
	}
	for k, v := range r.sales {
		tx.sales[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.users, r.sales = tx.users, tx.sales
	return nil
}

func (r *memoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role < out[j].Role
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (r *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, username, passwordHash, role string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, u := range r.users {
		if u.Username == username {
			return User{}, ErrUsernameTaken
		}
	}
	u := User{ID: r.nextID, Username: username, Role: role, CreatedAt: time.Now()}
	r.nextID++
	r.users[u.ID] = u
	r.hashes[u.ID] = passwordHash
	return u, nil
}

func (r *memoryRepo) CountAdmins(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	n := 0
	for _, u := range r.users {
		if u.Role == shared.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type memoryTx struct {
	repo  *memoryRepo
	users map[int64]User
	sales map[int64]int64
}

func (t *memoryTx) LockUser(ctx context.Context, id int64) (User, error) {
	u, ok := t.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (t *memoryTx) DeleteSalesByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for id, uid := range t.sales {
		if uid == userID {
			delete(t.sales, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeleteUser(ctx context.Context, id int64) error {
	if t.repo.failStep == "delete" {
		return errors.New("connection reset")
	}
	delete(t.users, id)
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil)
	svc.WithHashCost(bcrypt.MinCost)
	return svc
}

var admin = shared.Actor{ID: 1, Username: "admin", Role: shared.RoleAdmin}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	u, err := svc.CreateUser(context.Background(), admin, CreateInput{Username: " maria ", Password: "secret1", Role: "USER"})
	require.NoError(t, err)
	assert.Equal(t, "maria", u.Username)
	assert.Equal(t, shared.RoleUser, u.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("secret1")))
}

func TestCreateUserValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "123", Role: "user"})
	require.Error(t, err)
	assert.Equal(t, "Password must be at least 6 characters", shared.UserSafeMessage(err))

	_, err = svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "secret1", Role: "owner"})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))

	_, err = svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "secret1", Role: "user"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "secret2", Role: "admin"})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	assert.Equal(t, "Username maria already exists", shared.UserSafeMessage(err))
}

func TestDeleteSelfRejectedBeforeStorage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.DeleteUser(context.Background(), admin, admin.ID)
	require.Error(t, err)
	assert.Equal(t, shared.KindForbiddenSelf, shared.KindOf(err))
	assert.Equal(t, 0, repo.calls)
}

func TestDeleteUserCascadesSales(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "secret1", Role: "user"})
	require.NoError(t, err)
	repo.sales[10], repo.sales[11] = u.ID, u.ID
	repo.sales[12] = 99

	summary, err := svc.DeleteUser(ctx, admin, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.SalesRemoved)
	assert.Equal(t, map[int64]int64{12: 99}, repo.sales)
	_, ok := repo.users[u.ID]
	assert.False(t, ok)
}

func TestDeleteUserRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateInput{Username: "maria", Password: "secret1", Role: "user"})
	require.NoError(t, err)
	repo.sales[10] = u.ID
	repo.failStep = "delete"

	_, err = svc.DeleteUser(ctx, admin, u.ID)
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
	assert.Len(t, repo.sales, 1)
	assert.Contains(t, repo.users, u.ID)
}

func TestDeleteMissingUser(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.DeleteUser(context.Background(), admin, 42)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestLookup(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, admin, CreateInput{Username: "root", Password: "secret1", Role: "admin"})
	require.NoError(t, err)

	actor, err := svc.Lookup(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, actor.IsAdmin())

	_, err = svc.Lookup(ctx, 500)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestEnsureAdminOnlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "other", "changeme")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.users, 1)

	created, err = NewService(newMemoryRepo(), nil).EnsureAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestListUsersOrdering(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()
	for _, in := range []CreateInput{
		{Username: "zoe", Password: "secret1", Role: "user"},
		{Username: "bob", Password: "secret1", Role: "admin"},
		{Username: "ana", Password: "secret1", Role: "user"},
	} {
		_, err := svc.CreateUser(ctx, admin, in)
		require.NoError(t, err)
	}
	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"bob", "ana", "zoe"}, []string{users[0].Username, users[1].Username, users[2].Username})
}
