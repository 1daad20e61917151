package invitations_test

import (
	"context"
	"sync"
	"testing"
	"time"

	invitationstore "github.com/dalemusser/tenantgate/internal/app/store/invitations"
	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/app/system/access"
	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/mailer"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/txn"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string]*models.Invitation
	reverts int
}

func newMemStore() *memStore { return &memStore{rows: map[string]*models.Invitation{}} }

func (m *memStore) Create(_ context.Context, inv models.Invitation) (models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[inv.Token]; ok {
		return models.Invitation{}, invitationstore.ErrDuplicateToken
	}
	inv.ID = primitive.NewObjectID()
	inv.Status = models.InvitationPending
	inv.Organization = nil
	cp := inv
	m.rows[inv.Token] = &cp
	return inv, nil
}

func (m *memStore) FindPendingByToken(_ context.Context, token string) (models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[token]; ok && r.Status == models.InvitationPending {
		return *r, nil
	}
	return models.Invitation{}, invitationstore.ErrNotFound
}

func (m *memStore) GetByToken(_ context.Context, token string) (models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[token]; ok {
		return *r, nil
	}
	return models.Invitation{}, invitationstore.ErrNotFound
}

func (m *memStore) MarkAccepted(_ context.Context, token, userID string, at time.Time) (models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[token]
	if !ok || r.Status != models.InvitationPending {
		return models.Invitation{}, invitationstore.ErrNotPending
	}
	r.Status = models.InvitationAccepted
	r.AcceptedAt = &at
	r.AcceptedBy = userID
	return *r, nil
}

func (m *memStore) RevertAcceptance(_ context.Context, token, userID string, acceptedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverts++
	r, ok := m.rows[token]
	if !ok || r.Status != models.InvitationAccepted || r.AcceptedBy != userID ||
		r.AcceptedAt == nil || !r.AcceptedAt.Equal(acceptedAt) {
		return invitationstore.ErrNotFound
	}
	r.Status = models.InvitationPending
	r.AcceptedAt = nil
	r.AcceptedBy = ""
	return nil
}

func (m *memStore) Delete(_ context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, r := range m.rows {
		if r.ID == id {
			delete(m.rows, tok)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) ListPending(_ context.Context, orgID primitive.ObjectID) ([]models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invitation
	for _, r := range m.rows {
		if r.OrganizationID == orgID && r.Status == models.InvitationPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteExpiredPending(_ context.Context, cutoff time.Time, fallback time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, r := range m.rows {
		if r.Status == models.InvitationPending && r.EffectiveExpiry(fallback).Before(cutoff) {
			delete(m.rows, tok)
			n++
		}
	}
	return n, nil
}

func (m *memStore) status(token string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[token]; ok {
		return r.Status
	}
	return ""
}

type accessKey struct {
	user string
	org  primitive.ObjectID
}

type memAccess struct {
	mu        sync.Mutex
	rows      map[accessKey]models.OrganizationAccess
	failGrant error
}

func newMemAccess() *memAccess {
	return &memAccess{rows: map[accessKey]models.OrganizationAccess{}}
}

func (m *memAccess) ActiveAccess(_ context.Context, userID string, orgID primitive.ObjectID) (*models.OrganizationAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[accessKey{userID, orgID}]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memAccess) Grant(_ context.Context, userID string, orgID primitive.ObjectID, role string, invID *primitive.ObjectID) (models.OrganizationAccess, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGrant != nil {
		return models.OrganizationAccess{}, false, m.failGrant
	}
	k := accessKey{userID, orgID}
	if r, ok := m.rows[k]; ok {
		return r, false, nil
	}
	r := models.OrganizationAccess{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		OrganizationID: orgID,
		Role:           role,
		Status:         models.AccessActive,
		InvitationID:   invID,
	}
	m.rows[k] = r
	return r, true, nil
}

func (m *memAccess) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memDirectory struct {
	orgs map[primitive.ObjectID]*models.Organization
}

func (d *memDirectory) LookupID(_ context.Context, id primitive.ObjectID) (*models.Organization, error) {
	if o, ok := d.orgs[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, organizationstore.ErrNotFound
}

// directTx runs fn without a transaction, like a standalone server.
type directTx struct{}

func (directTx) Run(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// rollbackTx runs fn as a transaction over store: a failing fn leaves the
// invitation rows as they were before.
type rollbackTx struct{ store *memStore }

func (tx rollbackTx) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.store.mu.Lock()
	saved := make(map[string]models.Invitation, len(tx.store.rows))
	for tok, r := range tx.store.rows {
		saved[tok] = *r
	}
	tx.store.mu.Unlock()

	err := fn(txn.MarkTransaction(ctx))
	if err != nil {
		tx.store.mu.Lock()
		tx.store.rows = make(map[string]*models.Invitation, len(saved))
		for tok, r := range saved {
			cp := r
			tx.store.rows[tok] = &cp
		}
		tx.store.mu.Unlock()
	}
	return err
}

func (m *memStore) revertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverts
}

type captureNotifier struct {
	sent []mailer.InvitationEmailData
	err  error
}

func (c *captureNotifier) SendInvitation(_ context.Context, d mailer.InvitationEmailData) error {
	c.sent = append(c.sent, d)
	return c.err
}

type harness struct {
	svc      *invitations.Service
	store    *memStore
	access   *memAccess
	notifier *captureNotifier
	org      *models.Organization
	now      time.Time
}

// newHarness builds a service over one organization "acme" whose license is
// an active license ending in 30 days.
func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessTx(t, func(*memStore) invitations.TxRunner { return directTx{} })
}

// newHarnessTx is newHarness with the transaction runner built by tx.
func newHarnessTx(t *testing.T, tx func(*memStore) invitations.TxRunner) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		access:   newMemAccess(),
		notifier: &captureNotifier{},
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	ends := h.now.Add(30 * 24 * time.Hour)
	h.org = &models.Organization{ID: primitive.NewObjectID(), Slug: "acme", Name: "Acme"}
	h.org.License = &models.License{OrganizationID: h.org.ID, Status: models.LicenseActive, ExpiresAt: &ends}

	clock := func() time.Time { return h.now }
	lv := &license.Validator{Now: clock}
	h.svc = invitations.New(invitations.Deps{
		Store:     h.store,
		Access:    h.access,
		Directory: &memDirectory{orgs: map[primitive.ObjectID]*models.Organization{h.org.ID: h.org}},
		Resolver:  &access.Resolver{Access: h.access, License: lv},
		License:   lv,
		Tx:        tx(h.store),
		Notifier:  h.notifier,
		Links:     routing.Links{Scheme: "https", Apex: "pic2data.fi"},
	}, invitations.Config{
		TTL:         7 * 24 * time.Hour,
		FallbackTTL: 3 * 24 * time.Hour,
		Now:         clock,
	}, zap.NewNop())
	return h
}

func (h *harness) invite(t *testing.T, email, role string) models.Invitation {
	t.Helper()
	inv, err := h.svc.Create(context.Background(), invitations.CreateInput{
		OrganizationID: h.org.ID,
		Email:          email,
		Role:           role,
		InvitedBy:      "owner-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return inv
}
