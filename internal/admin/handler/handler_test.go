package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reengage/internal/admin/nonce"
	"reengage/internal/customer/coupon"
	"reengage/internal/customer/lock"
	"reengage/internal/customer/models"
	"reengage/internal/customer/store"
	"reengage/internal/customer/sync"
	"reengage/internal/settings"
	domainerrors "reengage/pkg/domain-errors"
)

type fakeSyncer struct {
	result sync.Result
	err    error
	calls  int
}

func (f *fakeSyncer) Sync(context.Context) (sync.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeIssuer struct {
	result coupon.Result
	err    error
}

func (f *fakeIssuer) Issue(context.Context) (coupon.Result, error) {
	return f.result, f.err
}

type fakeMailer struct {
	to      string
	subject string
	body    string
	err     error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.to = to
	f.subject = subject
	f.body = htmlBody
	return nil
}

type env struct {
	router   chi.Router
	syncer   *fakeSyncer
	issuer   *fakeIssuer
	mailer   *fakeMailer
	store    *store.MemoryStore
	settings *settings.MemoryStore
	nonces   *nonce.Service
	lock     *lock.RegistryLock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		syncer:   &fakeSyncer{},
		issuer:   &fakeIssuer{},
		mailer:   &fakeMailer{},
		store:    store.NewMemoryStore(),
		settings: settings.NewMemoryStore(),
		nonces:   nonce.New(),
		lock:     lock.New(),
	}
	h := New(
		slog.New(slog.DiscardHandler),
		e.syncer,
		e.issuer,
		e.store,
		e.settings,
		e.mailer,
		e.nonces,
		e.lock,
		nil,
	)
	e.router = chi.NewRouter()
	h.Register(e.router)
	return e
}

func (e *env) do(t *testing.T, method, path, nonceAction string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if nonceAction != "" {
		req.Header.Set("X-Action-Nonce", e.nonces.Issue(nonceAction))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRefreshRequiresNonce(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/registry/refresh", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.syncer.calls)
}

func TestRefreshRejectsNonceForOtherAction(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/registry/refresh", ActionDeleteAll, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, e.syncer.calls)
}

func TestNonceIsSingleUse(t *testing.T) {
	e := newEnv(t)
	token := e.nonces.Issue(ActionRefresh)

	for i, want := range []int{http.StatusOK, http.StatusBadRequest} {
		req := httptest.NewRequest(http.MethodPost, "/admin/registry/refresh", nil)
		req.Header.Set("X-Action-Nonce", token)
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
	assert.Equal(t, 1, e.syncer.calls)
}

func TestIssueNonceEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/admin/nonce?action=refresh", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "refresh", body["action"])
	require.NoError(t, e.nonces.Verify("refresh", body["nonce"]))
}

func TestIssueNonceRequiresAction(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/admin/nonce", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	e := newEnv(t)
	e.syncer.result = sync.Result{Synced: true, Customers: 12}

	rec := e.do(t, http.MethodPost, "/admin/registry/refresh", ActionRefresh, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res sync.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Synced)
	assert.Equal(t, 12, res.Customers)
}

func TestRefreshConflictMapsTo409(t *testing.T) {
	e := newEnv(t)
	e.syncer.err = domainerrors.New(domainerrors.CodeConflict, "a registry operation is already running")

	rec := e.do(t, http.MethodPost, "/admin/registry/refresh", ActionRefresh, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.Upsert(ctx, &models.CustomerRecord{CustomerKey: "user:7", UserID: 7, Email: "a@x.com"}))

	rec := e.do(t, http.MethodDelete, "/admin/registry", ActionDeleteAll, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	recs, err := e.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteAllRejectedWhileLocked(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.lock.TryAcquire("test"))
	defer e.lock.Release()

	rec := e.do(t, http.MethodDelete, "/admin/registry", ActionDeleteAll, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.Upsert(ctx, &models.CustomerRecord{CustomerKey: "user:7", UserID: 7, Email: "a@x.com"}))
	recs, err := e.store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := e.do(t, http.MethodDelete, fmt.Sprintf("/admin/registry/rows/%d", recs[0].ID), ActionDeleteRow, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["deleted"])

	recs, err = e.store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteRowUnknownID(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodDelete, "/admin/registry/rows/999", ActionDeleteRow, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body["deleted"])
}

func TestDeleteRowInvalidID(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodDelete, "/admin/registry/rows/abc", ActionDeleteRow, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateCoupons(t *testing.T) {
	e := newEnv(t)
	e.issuer.result = coupon.Result{
		Issued: []models.IssuedCoupon{{Email: "a@x.com", Voucher: "REENGAGE-AB12CD34EF"}},
		Failures: []models.CouponFailure{
			{Email: "b@x.com", Error: "boom"},
		},
	}

	rec := e.do(t, http.MethodPost, "/admin/coupons/generate", ActionGenerate, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res coupon.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Issued, 1)
	assert.Equal(t, "REENGAGE-AB12CD34EF", res.Issued[0].Voucher)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b@x.com", res.Failures[0].Email)
}

func TestExportCSV(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	orderDate := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, e.store.Upsert(ctx, &models.CustomerRecord{
		CustomerKey: "user:7", UserID: 7, Email: "a@x.com", FirstName: "Ann", LastOrderDate: &orderDate,
	}))

	rec := e.do(t, http.MethodGet, "/admin/registry/export", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "customer_key")
	assert.Contains(t, lines[1], "a@x.com")
}

func TestSendTestMailWithoutCoupons(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/mail/test", ActionSendTestMail, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendTestMailDefaultsToFirstCoupon(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.settings.SetLastGeneratedCoupons(ctx, []models.IssuedCoupon{
		{FirstName: "Ann", Email: "a@x.com", Voucher: "REENGAGE-AB12CD34EF"},
		{FirstName: "Bob", Email: "b@x.com", Voucher: "REENGAGE-1234567890"},
	}))

	rec := e.do(t, http.MethodPost, "/admin/mail/test", ActionSendTestMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res testMailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Sent)
	assert.Equal(t, "a@x.com", res.To)
	assert.Equal(t, "a@x.com", e.mailer.to)
	assert.Equal(t, TestMailSubject, e.mailer.subject)
	assert.Contains(t, e.mailer.body, "Ann")
	assert.Contains(t, e.mailer.body, "REENGAGE-AB12CD34EF")
	assert.NotContains(t, e.mailer.body, "{first_name}")
}

func TestSendTestMailWithIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.settings.SetLastGeneratedCoupons(ctx, []models.IssuedCoupon{
		{FirstName: "Ann", Email: "a@x.com", Voucher: "V1"},
		{FirstName: "Bob", Email: "b@x.com", Voucher: "V2"},
	}))

	idx := 1
	rec := e.do(t, http.MethodPost, "/admin/mail/test", ActionSendTestMail, testMailRequest{Index: &idx})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b@x.com", e.mailer.to)
}

func TestSendTestMailIndexOutOfRange(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.settings.SetLastGeneratedCoupons(ctx, []models.IssuedCoupon{
		{Email: "a@x.com", Voucher: "V1"},
	}))

	idx := 5
	rec := e.do(t, http.MethodPost, "/admin/mail/test", ActionSendTestMail, testMailRequest{Index: &idx})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendTestMailReportsDeliveryFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.mailer.err = fmt.Errorf("relay refused")
	require.NoError(t, e.settings.SetLastGeneratedCoupons(ctx, []models.IssuedCoupon{
		{Email: "a@x.com", Voucher: "V1"},
	}))

	rec := e.do(t, http.MethodPost, "/admin/mail/test", ActionSendTestMail, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res testMailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Sent)
	assert.Contains(t, res.Error, "relay refused")
}

func TestTemplateRoundTrip(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/admin/settings/template", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res templatePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, settings.DefaultEmailTemplate, res.Template)

	rec = e.do(t, http.MethodPut, "/admin/settings/template", ActionUpdateTemplate, templatePayload{Template: "<p>Hi {first_name}: {voucher}</p>"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/settings/template", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "<p>Hi {first_name}: {voucher}</p>", res.Template)
}

func TestTemplateRejectsEmpty(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/admin/settings/template", ActionUpdateTemplate, templatePayload{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
