package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"schema-host/internal/common/logger"
	"schema-host/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStore struct {
	mapping    map[string]string
	managed    map[string]string
	balances   map[string]int64
	backfilled map[string]string
	lookups    int
	debitErr   error
	lookupErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mapping:    map[string]string{},
		managed:    map[string]string{},
		balances:   map[string]int64{},
		backfilled: map[string]string{},
	}
}

func (f *fakeStore) GetTenantBilling(_ context.Context, tenant string) (string, error) {
	f.lookups++
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	if email, ok := f.mapping[tenant]; ok {
		return email, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeStore) FindManagingAccount(_ context.Context, tenant string) (string, error) {
	if email, ok := f.managed[tenant]; ok {
		return email, nil
	}
	return "", repository.ErrNotFound
}

func (f *fakeStore) PutTenantBilling(_ context.Context, tenant, email, source string) error {
	f.backfilled[tenant] = source
	f.mapping[tenant] = email
	return nil
}

func (f *fakeStore) DebitTokens(_ context.Context, email string, tokens int64) (int64, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	if _, ok := f.balances[email]; !ok {
		return 0, repository.ErrNotFound
	}
	f.balances[email] -= tokens
	return f.balances[email], nil
}

func createTestLedger(t *testing.T, store Store, cache redis.Cmdable) *Ledger {
	return NewLedger(store, cache, time.Minute, logger.NewTestLogger(t))
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// ==========================
// Ledger Tests
// ==========================

func TestLedger_BillingUserFor_CachesMapping(t *testing.T) {
	store := newFakeStore()
	store.mapping["acme"] = "owner@acme.io"
	mr, client := newMiniredisClient(t)
	ledger := createTestLedger(t, store, client)
	ctx := context.Background()

	email, err := ledger.BillingUserFor(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", email)

	cached, err := mr.Get("billing-user:acme")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", cached)
	assert.True(t, mr.TTL("billing-user:acme") > 0)

	email, err = ledger.BillingUserFor(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", email)
	assert.Equal(t, 1, store.lookups, "second lookup must be served from cache")
}

func TestLedger_BillingUserFor_BackfillsManagedTenant(t *testing.T) {
	store := newFakeStore()
	store.managed["legacy"] = "old@acme.io"
	ledger := createTestLedger(t, store, nil)

	email, err := ledger.BillingUserFor(context.Background(), "legacy")
	require.NoError(t, err)
	assert.Equal(t, "old@acme.io", email)
	assert.Equal(t, SourceManagedTenants, store.backfilled["legacy"])
}

func TestLedger_BillingUserFor_None(t *testing.T) {
	_, client := newMiniredisClient(t)
	ledger := createTestLedger(t, newFakeStore(), client)

	email, err := ledger.BillingUserFor(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestLedger_BillingUserFor_CacheErrorFallsThrough(t *testing.T) {
	store := newFakeStore()
	store.mapping["acme"] = "owner@acme.io"

	client, mock := redismock.NewClientMock()
	mock.ExpectGet("billing-user:acme").SetErr(errors.New("redis down"))
	mock.ExpectSet("billing-user:acme", "owner@acme.io", time.Minute).SetErr(errors.New("redis down"))

	email, err := createTestLedger(t, store, client).BillingUserFor(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_Debit(t *testing.T) {
	store := newFakeStore()
	store.mapping["acme"] = "owner@acme.io"
	store.balances["owner@acme.io"] = 5
	ledger := createTestLedger(t, store, nil)
	ctx := context.Background()

	res, err := ledger.Debit(ctx, "acme", 10, "llm-preload")
	require.NoError(t, err)
	assert.Equal(t, "owner@acme.io", res.BillingUserEmail)
	assert.Equal(t, int64(10), res.TokensDebited)
	require.NotNil(t, res.NewBalance)
	assert.Equal(t, int64(-5), *res.NewBalance, "balances may go negative")

	res, err = ledger.Debit(ctx, "unbilled", 1, "pageload")
	require.NoError(t, err)
	assert.Equal(t, &DebitResult{}, res)

	_, err = ledger.Debit(ctx, "acme", -1, "pageload")
	assert.ErrorIs(t, err, ErrNegativeTokens)
}

func TestLedger_Debit_FailuresBecomeWarnings(t *testing.T) {
	store := newFakeStore()
	store.mapping["acme"] = "owner@acme.io"
	store.balances["owner@acme.io"] = 5
	store.debitErr = errors.New("deadlock detected")

	res, err := createTestLedger(t, store, nil).Debit(context.Background(), "acme", 1, "pageload")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.TokensDebited)
	assert.NotEmpty(t, res.Warning)

	store.debitErr = nil
	store.lookupErr = errors.New("connection refused")
	res, err = createTestLedger(t, store, nil).Debit(context.Background(), "acme", 1, "pageload")
	require.NoError(t, err)
	assert.Empty(t, res.BillingUserEmail)
	assert.NotEmpty(t, res.Warning)
}

func TestLedger_Debit_MissingAccountDropsCache(t *testing.T) {
	store := newFakeStore()
	store.mapping["acme"] = "gone@acme.io"
	mr, client := newMiniredisClient(t)
	ledger := createTestLedger(t, store, client)

	res, err := ledger.Debit(context.Background(), "acme", 1, "pageload")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.False(t, mr.Exists("billing-user:acme"))
}

// ==========================
// Storage Billing Tests
// ==========================

type fakeTenants []repository.TenantBilling

func (f fakeTenants) ListBilledTenants(context.Context) ([]repository.TenantBilling, error) {
	return f, nil
}

type fakeUsage map[string]int64

func (f fakeUsage) Usage(_ context.Context, tenant string) (int64, error) {
	if b, ok := f[tenant]; ok {
		return b, nil
	}
	return 0, errors.New("list failed")
}

type recordingPublisher struct {
	events []MeterEvent
	attrs  []map[string]string
	fail   map[string]bool
}

func (r *recordingPublisher) PublishJSON(_ context.Context, _ string, payload interface{}, attributes map[string]string) (string, error) {
	event := payload.(MeterEvent)
	if r.fail[event.TenantID] {
		return "", errors.New("throttled")
	}
	r.events = append(r.events, event)
	r.attrs = append(r.attrs, attributes)
	return "msg-" + event.TenantID, nil
}

func TestStorageMBAndTokens(t *testing.T) {
	assert.Equal(t, int64(0), StorageMB(0))
	assert.Equal(t, int64(1), StorageMB(1))
	assert.Equal(t, int64(1), StorageMB(bytesPerMB))
	assert.Equal(t, int64(2), StorageMB(bytesPerMB+1))

	assert.Equal(t, int64(1), StorageTokens(0, 10))
	assert.Equal(t, int64(1), StorageTokens(19, 10))
	assert.Equal(t, int64(2), StorageTokens(25, 10))
}

func TestStorageBiller_Run(t *testing.T) {
	tenants := fakeTenants{
		{TenantID: "acme", UserEmail: "owner@acme.io"},
		{TenantID: "big", UserEmail: "big@acme.io"},
		{TenantID: "broken", UserEmail: "broken@acme.io"},
		{TenantID: "unlisted", UserEmail: "x@acme.io"},
	}
	usage := fakeUsage{"acme": 1500, "big": 35*bytesPerMB + 10, "broken": 10}
	pub := &recordingPublisher{fail: map[string]bool{"broken": true}}

	biller := NewStorageBiller(tenants, usage, pub, StorageConfig{TopicARN: "arn:meter"}, logger.NewTestLogger(t))
	biller.now = func() time.Time { return time.Unix(1700000000, 0) }

	charges, err := biller.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []TenantCharge{
		{TenantID: "acme", StorageMB: 1, Tokens: 1, MessageID: "msg-acme"},
		{TenantID: "big", StorageMB: 36, Tokens: 3, MessageID: "msg-big"},
		{TenantID: "broken", StorageMB: 1, Tokens: 1, ErrorCode: "METER_PUBLISH_FAILED", Error: "throttled"},
		{TenantID: "unlisted", StorageMB: 0, Tokens: 1, MessageID: "msg-unlisted"},
	}, charges)

	require.Len(t, pub.events, 3)
	assert.Equal(t, MeterEvent{
		EventName: "pageload_tokens", Timestamp: 1700000000, TenantID: "big",
		BillingUserEmail: "big@acme.io", StorageMB: 36, Value: 3,
	}, pub.events[1])
	assert.Equal(t, "pageload_tokens", pub.attrs[0]["event_name"])
}
