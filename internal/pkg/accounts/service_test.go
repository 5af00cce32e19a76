package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

type fakeRepo struct {
	users    map[uint]*models.User
	balances map[uint]int64
	subs     map[uint]models.UserSubscription
	keys     []*models.APIKey
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[uint]*models.User{}, balances: map[uint]int64{}, subs: map[uint]models.UserSubscription{}}
}

func (r *fakeRepo) add(u models.User) *models.User {
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = &u
	return &u
}

func (r *fakeRepo) List(ctx context.Context, f Filter) ([]models.User, int64, error) {
	var out []models.User
	for id := uint(1); id <= r.nextID; id++ {
		u, ok := r.users[id]
		if !ok {
			continue
		}
		if f.Active != nil && u.IsActive != *f.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) Get(ctx context.Context, id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeRepo) GetMany(ctx context.Context, ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) Create(ctx context.Context, u *models.User) error {
	r.nextID++
	u.ID = r.nextID
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *fakeRepo) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	u, ok := r.users[id]
	if !ok {
		return nil
	}
	apply(u, updates)
	return nil
}

func (r *fakeRepo) UpdateMany(ctx context.Context, ids []uint, updates map[string]interface{}) (int64, error) {
	var n int64
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			apply(u, updates)
			n++
		}
	}
	return n, nil
}

func apply(u *models.User, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "full_name":
			u.FullName = v.(string)
		case "email":
			u.Email = v.(string)
		case "role":
			u.Role = v.(string)
		case "is_active":
			u.IsActive = v.(bool)
		case "last_login_at":
			t := v.(time.Time)
			u.LastLoginAt = &t
		}
	}
}

func (r *fakeRepo) Balances(ctx context.Context, ids []uint) (map[uint]int64, error) {
	return r.balances, nil
}

func (r *fakeRepo) Subscriptions(ctx context.Context, ids []uint) (map[uint]models.UserSubscription, error) {
	return r.subs, nil
}

func (r *fakeRepo) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	key.ID = uint(len(r.keys) + 1)
	r.keys = append(r.keys, key)
	return nil
}

func (r *fakeRepo) ListAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error) {
	var out []models.APIKey
	for _, k := range r.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	for _, k := range r.keys {
		if k.Hash == hash && k.RevokedAt == nil {
			cp := *k
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) RevokeAPIKeys(ctx context.Context, userID uint, keyID uint, at time.Time) (int64, error) {
	var n int64
	for _, k := range r.keys {
		if k.UserID == userID && k.RevokedAt == nil && (keyID == 0 || k.ID == keyID) {
			t := at
			k.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) TouchAPIKey(ctx context.Context, id uint, at time.Time) error {
	for _, k := range r.keys {
		if k.ID == id {
			t := at
			k.LastUsedAt = &t
		}
	}
	return nil
}

type fakeAuditor struct {
	entries []audit.Entry
	err     error
}

func (a *fakeAuditor) Record(ctx context.Context, e audit.Entry) (*models.AdminActivityLog, error) {
	if a.err != nil {
		return nil, &apperr.AuditWarning{ActivityType: e.ActivityType, Err: a.err}
	}
	a.entries = append(a.entries, e)
	return &models.AdminActivityLog{ID: uint(len(a.entries))}, nil
}

func (a *fakeAuditor) AdminName(ctx context.Context, adminID uint) string { return "Ada" }

type fakeCredits struct{ opened []uint }

func (c *fakeCredits) EnsureAccount(ctx context.Context, userID uint) (*models.UserCredit, error) {
	c.opened = append(c.opened, userID)
	return &models.UserCredit{UserID: userID}, nil
}

func setup(t *testing.T) (*Service, *fakeRepo, *fakeAuditor, usercontext.UserContext) {
	t.Helper()
	repo := newFakeRepo()
	admin := repo.add(models.User{FullName: "Ada", Email: "ada@example.com", Role: models.ROLE_ADMIN, IsActive: true})
	aud := &fakeAuditor{}
	svc := NewService(repo, aud, &fakeCredits{})
	caller := usercontext.UserContext{UserID: admin.ID, Username: admin.FullName, IsLoggedIn: true, IsAdmin: true}
	return svc, repo, aud, caller
}

func TestCreateHashesPasswordAndOpensAccount(t *testing.T) {
	repo := newFakeRepo()
	aud := &fakeAuditor{}
	credits := &fakeCredits{}
	svc := NewService(repo, aud, credits)
	caller := usercontext.UserContext{UserID: 99, IsLoggedIn: true, IsAdmin: true}

	res, err := svc.Create(context.Background(), caller, CreateInput{FullName: "Bob", Email: " Bob@Example.com ", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", res.User.Email)
	assert.Equal(t, models.ROLE_STANDARD, res.User.Role)
	assert.NotEqual(t, "s3cretpass", res.User.Password)
	assert.True(t, res.User.CheckPassword("s3cretpass"))
	assert.Equal(t, []uint{res.User.ID}, credits.opened)

	require.Len(t, aud.entries, 1)
	assert.Equal(t, models.ActivityUserCreated, aud.entries[0].ActivityType)
	assert.Equal(t, res.User.ID, *aud.entries[0].UserID)
}

func TestCreateValidation(t *testing.T) {
	svc, repo, _, caller := setup(t)
	cases := map[string]CreateInput{
		"short password": {Email: "x@example.com", Password: "short"},
		"bad email":      {Email: "not-an-email", Password: "longenough"},
		"bad role":       {Email: "x@example.com", Password: "longenough", Role: "root"},
		"duplicate":      {Email: "ada@example.com", Password: "longenough"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			before := len(repo.users)
			_, err := svc.Create(context.Background(), caller, in)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Len(t, repo.users, before)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, repo, aud, caller := setup(t)
	u := repo.add(models.User{FullName: "Bob", Email: "bob@example.com", Role: models.ROLE_STANDARD, IsActive: true})

	name := "Robert"
	res, err := svc.UpdateProfile(context.Background(), caller, u.ID, ProfileInput{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Robert", res.User.FullName)
	assert.Equal(t, "Robert", repo.users[u.ID].FullName)
	require.Len(t, aud.entries, 1)
	assert.Equal(t, models.ActivityProfileUpdate, aud.entries[0].ActivityType)

	taken := "ada@example.com"
	_, err = svc.UpdateProfile(context.Background(), caller, u.ID, ProfileInput{Email: &taken})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSetActiveAndChangeRole(t *testing.T) {
	svc, repo, aud, caller := setup(t)
	u := repo.add(models.User{Email: "bob@example.com", Role: models.ROLE_STANDARD, IsActive: true})

	_, err := svc.SetActive(context.Background(), caller, u.ID, false)
	require.NoError(t, err)
	assert.False(t, repo.users[u.ID].IsActive)

	_, err = svc.ChangeRole(context.Background(), caller, u.ID, models.ROLE_ADMIN)
	require.NoError(t, err)
	assert.Equal(t, models.ROLE_ADMIN, repo.users[u.ID].Role)

	require.Len(t, aud.entries, 2)
	assert.Equal(t, models.ActivityStatusChange, aud.entries[0].ActivityType)
	assert.Equal(t, models.ActivityRoleChange, aud.entries[1].ActivityType)
	assert.Equal(t, models.ROLE_STANDARD, aud.entries[1].Metadata["from_role"])
}

func TestSelfProtection(t *testing.T) {
	svc, _, aud, caller := setup(t)

	_, err := svc.SetActive(context.Background(), caller, caller.UserID, false)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.ChangeRole(context.Background(), caller, caller.UserID, models.ROLE_STANDARD)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Deactivate(context.Background(), caller, caller.UserID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, aud.entries)
}

func TestDeactivateRevokesKeys(t *testing.T) {
	svc, repo, aud, caller := setup(t)
	u := repo.add(models.User{Email: "bob@example.com", Role: models.ROLE_STANDARD, IsActive: true})
	issued, err := svc.IssueAPIKey(context.Background(), caller, u.ID, "ci")
	require.NoError(t, err)

	_, err = svc.Deactivate(context.Background(), caller, u.ID)
	require.NoError(t, err)
	assert.False(t, repo.users[u.ID].IsActive)

	_, _, err = svc.LookupAPIKey(context.Background(), issued.Secret)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	last := aud.entries[len(aud.entries)-1]
	assert.Equal(t, models.ActivityUserDeactivated, last.ActivityType)
	assert.Equal(t, int64(1), last.Metadata["revoked_api_keys"])
}

func TestBulkUpdateAuditsEachUser(t *testing.T) {
	svc, repo, aud, caller := setup(t)
	a := repo.add(models.User{Email: "a@example.com", Role: models.ROLE_STANDARD, IsActive: true})
	b := repo.add(models.User{Email: "b@example.com", Role: models.ROLE_STANDARD, IsActive: true})

	inactive := false
	res, err := svc.BulkUpdate(context.Background(), caller, BulkInput{IDs: []uint{a.ID, b.ID, 404}, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Updated)
	assert.Equal(t, []uint{404}, res.Missing)
	assert.False(t, repo.users[a.ID].IsActive)
	assert.False(t, repo.users[b.ID].IsActive)
	require.Len(t, aud.entries, 2)
	assert.Equal(t, a.ID, *aud.entries[0].UserID)
	assert.Equal(t, b.ID, *aud.entries[1].UserID)
}

func TestBulkUpdateRejectsSelfDeactivation(t *testing.T) {
	svc, _, _, caller := setup(t)
	inactive := false
	_, err := svc.BulkUpdate(context.Background(), caller, BulkInput{IDs: []uint{caller.UserID}, Active: &inactive})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	svc, repo, _, caller := setup(t)
	res, err := svc.Create(context.Background(), caller, CreateInput{Email: "bob@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), "BOB@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, u.ID)
	assert.NotNil(t, repo.users[u.ID].LastLoginAt)

	_, err = svc.Authenticate(context.Background(), "bob@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	repo.users[u.ID].IsActive = false
	_, err = svc.Authenticate(context.Background(), "bob@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestAPIKeyLifecycle(t *testing.T) {
	svc, repo, _, caller := setup(t)
	u := repo.add(models.User{Email: "bot@example.com", Role: models.ROLE_ADMIN, IsActive: true})

	issued, err := svc.IssueAPIKey(context.Background(), caller, u.ID, " deploy ")
	require.NoError(t, err)
	assert.Equal(t, "deploy", issued.Key.Name)

	owner, key, err := svc.LookupAPIKey(context.Background(), issued.Secret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, owner.ID)
	assert.Equal(t, issued.Key.ID, key.ID)
	assert.NotNil(t, repo.keys[0].LastUsedAt)

	require.NoError(t, svc.RevokeAPIKey(context.Background(), caller, u.ID, key.ID))
	_, _, err = svc.LookupAPIKey(context.Background(), issued.Secret)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)

	err = svc.RevokeAPIKey(context.Background(), caller, u.ID, key.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetIncludesBalanceAndSubscription(t *testing.T) {
	svc, repo, _, _ := setup(t)
	u := repo.add(models.User{Email: "bob@example.com", Role: models.ROLE_STANDARD, IsActive: true})
	repo.balances[u.ID] = 120
	repo.subs[u.ID] = models.UserSubscription{UserID: u.ID, Tier: models.TierFounder, Status: models.SubscriptionStatusActive}

	got, err := svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.Balance)
	require.NotNil(t, got.Subscription)
	assert.Equal(t, models.TierFounder, got.Subscription.Tier)

	_, err = svc.Get(context.Background(), 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAuditFailureIsWarning(t *testing.T) {
	svc, repo, aud, caller := setup(t)
	u := repo.add(models.User{Email: "bob@example.com", Role: models.ROLE_STANDARD, IsActive: true})
	aud.err = errors.New("down")

	res, err := svc.SetActive(context.Background(), caller, u.ID, false)
	require.NoError(t, err)
	var warn *apperr.AuditWarning
	assert.True(t, errors.As(res.Warning, &warn))
	assert.False(t, repo.users[u.ID].IsActive)
}
