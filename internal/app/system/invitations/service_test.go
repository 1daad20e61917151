package invitations_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	invitationstore "github.com/dalemusser/tenantgate/internal/app/store/invitations"
	"github.com/dalemusser/tenantgate/internal/app/system/invitations"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "  Alice@X.com ", "USER")

	if inv.EmailAddress != "alice@x.com" || inv.Role != models.RoleUser {
		t.Errorf("normalized fields: email=%q role=%q", inv.EmailAddress, inv.Role)
	}
	if len(inv.Token) != 2*invitations.TokenBytes {
		t.Errorf("token length = %d", len(inv.Token))
	}
	if inv.Status != models.InvitationPending {
		t.Errorf("status = %q", inv.Status)
	}
	if inv.ExpiresAt == nil || !inv.ExpiresAt.Equal(h.now.Add(7*24*time.Hour)) {
		t.Errorf("ExpiresAt = %v", inv.ExpiresAt)
	}
	if inv.Organization == nil || inv.Organization.Slug != "acme" {
		t.Error("organization should be attached")
	}
}

func TestCreate_TokensAreUnique(t *testing.T) {
	h := newHarness(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inv := h.invite(t, "bob@x.com", models.RoleUser)
		if seen[inv.Token] {
			t.Fatalf("duplicate token %q", inv.Token)
		}
		seen[inv.Token] = true
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		email string
		role  string
		prep  func(h *harness)
		want  error
	}{
		{"bad email", "not-an-email", models.RoleUser, nil, invitations.ErrInvalidEmail},
		{"owner role", "a@x.com", models.RoleOwner, nil, invitations.ErrInvalidRole},
		{"unknown role", "a@x.com", "superuser", nil, invitations.ErrInvalidRole},
		{"suspended license", "a@x.com", models.RoleUser, func(h *harness) { h.org.License.Status = models.LicenseSuspended }, models.ErrInvalidLicense},
		{"lapsed license", "a@x.com", models.RoleUser, func(h *harness) { h.now = h.now.Add(31 * 24 * time.Hour) }, models.ErrInvalidLicense},
		{"missing license", "a@x.com", models.RoleUser, func(h *harness) { h.org.License = nil }, models.ErrInvalidLicense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.prep != nil {
				tt.prep(h)
			}
			_, err := h.svc.Create(context.Background(), invitations.CreateInput{
				OrganizationID: h.org.ID, Email: tt.email, Role: tt.role,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if n := len(h.store.rows); n != 0 {
				t.Errorf("no invitation should be stored, found %d", n)
			}
		})
	}
}

func TestCreate_UnknownOrganization(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), invitations.CreateInput{
		OrganizationID: primitive.NewObjectID(), Email: "a@x.com", Role: models.RoleUser,
	})
	if !errors.Is(err, invitations.ErrOrganizationAbsent) {
		t.Errorf("err = %v", err)
	}
}

func TestGetByToken_Expiry(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	ctx := context.Background()

	got, err := h.svc.GetByToken(ctx, inv.Token)
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.Organization == nil || got.Organization.ID != h.org.ID {
		t.Error("organization should be attached")
	}

	h.now = *inv.ExpiresAt
	if _, err := h.svc.GetByToken(ctx, inv.Token); err != nil {
		t.Errorf("invitation should still be valid at its expiry instant: %v", err)
	}

	h.now = inv.ExpiresAt.Add(time.Nanosecond)
	if _, err := h.svc.GetByToken(ctx, inv.Token); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("expected ErrInvitationNotFound after expiry, got %v", err)
	}
}

func TestGetByToken_FallbackExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Legacy row without expires_at: created_at + fallback (3 days here).
	created := h.now
	legacy, err := h.store.Create(ctx, models.Invitation{
		OrganizationID: h.org.ID,
		EmailAddress:   "legacy@x.com",
		Role:           models.RoleUser,
		Token:          "legacy-token",
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatal(err)
	}

	h.now = created.Add(3*24*time.Hour - time.Second)
	if _, err := h.svc.GetByToken(ctx, legacy.Token); err != nil {
		t.Errorf("within fallback window: %v", err)
	}
	h.now = created.Add(3*24*time.Hour + time.Second)
	if _, err := h.svc.GetByToken(ctx, legacy.Token); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("past fallback window: %v", err)
	}
}

func TestGetByToken_UnknownAndEmpty(t *testing.T) {
	h := newHarness(t)
	for _, tok := range []string{"", "nope"} {
		if _, err := h.svc.GetByToken(context.Background(), tok); !errors.Is(err, models.ErrInvitationNotFound) {
			t.Errorf("GetByToken(%q) err = %v", tok, err)
		}
	}
}

func TestAccept_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	alice := "3f1c9a52-8e0b-4d57-9a43-2b6f1e0c7d11"

	got, err := h.svc.Accept(ctx, inv.Token, alice)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Status != models.InvitationAccepted || got.AcceptedBy != alice || got.AcceptedAt == nil {
		t.Errorf("accepted invitation = %+v", got)
	}

	row, _ := h.access.ActiveAccess(ctx, alice, h.org.ID)
	if row == nil || row.Role != models.RoleUser || row.Status != models.AccessActive {
		t.Fatalf("access row = %+v", row)
	}
	if row.InvitationID == nil || *row.InvitationID != inv.ID {
		t.Error("access row should reference the invitation")
	}

	if _, err := h.svc.Accept(ctx, inv.Token, alice); !errors.Is(err, models.ErrInvitationAlreadyAccepted) {
		t.Errorf("second accept: %v", err)
	}
	if _, err := h.svc.GetByToken(ctx, inv.Token); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("accepted token must not be returned by GetByToken: %v", err)
	}
}

func TestAccept_ConcurrentExactlyOnce(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losers    int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := h.svc.Accept(context.Background(), inv.Token, primitive.NewObjectID().Hex())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrInvitationAlreadyAccepted):
				losers++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if successes != 1 || losers != n-1 || len(other) != 0 {
		t.Fatalf("successes=%d losers=%d other=%v", successes, losers, other)
	}
	if c := h.access.count(); c != 1 {
		t.Errorf("access rows = %d, want 1", c)
	}
}

func TestAccept_LicenseInvalid(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	h.org.License.Status = models.LicenseExpired

	_, err := h.svc.Accept(context.Background(), inv.Token, "user-1")
	if !errors.Is(err, models.ErrInvalidLicense) {
		t.Fatalf("err = %v", err)
	}
	if st := h.store.status(inv.Token); st != models.InvitationPending {
		t.Errorf("invitation status = %q, want pending", st)
	}
	if h.access.count() != 0 {
		t.Error("no access row should be created")
	}
}

func TestAccept_ExistingMemberIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := "member-1"
	if _, _, err := h.access.Grant(ctx, user, h.org.ID, models.RoleAdmin, nil); err != nil {
		t.Fatal(err)
	}
	inv := h.invite(t, "member@x.com", models.RoleUser)

	if _, err := h.svc.Accept(ctx, inv.Token, user); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	row, _ := h.access.ActiveAccess(ctx, user, h.org.ID)
	if row.Role != models.RoleAdmin {
		t.Errorf("existing grant should be kept, role = %q", row.Role)
	}
}

func TestAccept_GrantFailureIsCompensated(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	boom := errors.New("write concern timeout")
	h.access.failGrant = boom

	_, err := h.svc.Accept(context.Background(), inv.Token, "user-1")
	if !errors.Is(err, models.ErrAcceptTransitionFailed) {
		t.Fatalf("err = %v, want ErrAcceptTransitionFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause should be wrapped")
	}
	if st := h.store.status(inv.Token); st != models.InvitationPending {
		t.Fatalf("invitation should be reverted to pending, got %q", st)
	}

	// The token is usable again once the grant succeeds.
	h.access.failGrant = nil
	if _, err := h.svc.Accept(context.Background(), inv.Token, "user-1"); err != nil {
		t.Errorf("retry after revert: %v", err)
	}
}

func TestAccept_GrantFailureInTransactionSkipsRevert(t *testing.T) {
	h := newHarnessTx(t, func(m *memStore) invitations.TxRunner { return rollbackTx{store: m} })
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	h.access.failGrant = errors.New("write conflict")

	_, err := h.svc.Accept(context.Background(), inv.Token, "user-1")
	if !errors.Is(err, models.ErrAcceptTransitionFailed) {
		t.Fatalf("err = %v, want ErrAcceptTransitionFailed", err)
	}
	if n := h.store.revertCount(); n != 0 {
		t.Errorf("RevertAcceptance called %d times after a rolled-back transaction", n)
	}
	if st := h.store.status(inv.Token); st != models.InvitationPending {
		t.Errorf("status = %q, want pending after rollback", st)
	}
}

func TestAccept_RevertLeavesOtherAcceptanceAlone(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	if _, err := h.svc.Accept(context.Background(), inv.Token, "user-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	// A compensation carrying a different acceptance time belongs to another call.
	err := h.store.RevertAcceptance(context.Background(), inv.Token, "user-1", h.now.Add(-time.Millisecond))
	if !errors.Is(err, invitationstore.ErrNotFound) {
		t.Errorf("RevertAcceptance err = %v, want ErrNotFound", err)
	}
	if st := h.store.status(inv.Token); st != models.InvitationAccepted {
		t.Errorf("status = %q, want accepted", st)
	}
}

func TestAccept_Rejections(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	ctx := context.Background()

	if _, err := h.svc.Accept(ctx, inv.Token, ""); !errors.Is(err, models.ErrRegistrationFailed) {
		t.Errorf("empty user: %v", err)
	}
	if _, err := h.svc.Accept(ctx, "missing", "user-1"); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("unknown token: %v", err)
	}
	h.now = inv.ExpiresAt.Add(time.Minute)
	if _, err := h.svc.Accept(ctx, inv.Token, "user-1"); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("expired token: %v", err)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	ctx := context.Background()

	if err := h.svc.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := h.svc.Delete(ctx, inv.ID); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("second delete: %v", err)
	}
	if _, err := h.svc.GetByToken(ctx, inv.Token); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("deleted token: %v", err)
	}
}

func TestRegrant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inv := h.invite(t, "alice@x.com", models.RoleAdmin)

	if _, _, err := h.svc.Regrant(ctx, inv.Token); !errors.Is(err, invitations.ErrNotAccepted) {
		t.Errorf("pending invitation: %v", err)
	}

	// Simulate an acceptance whose grant was lost.
	if _, err := h.store.MarkAccepted(ctx, inv.Token, "user-9", h.now); err != nil {
		t.Fatal(err)
	}
	row, created, err := h.svc.Regrant(ctx, inv.Token)
	if err != nil || !created || row.Role != models.RoleAdmin || row.UserID != "user-9" {
		t.Fatalf("Regrant: row=%+v created=%v err=%v", row, created, err)
	}
	if _, created, _ := h.svc.Regrant(ctx, inv.Token); created {
		t.Error("second regrant should be a no-op")
	}
	if _, _, err := h.svc.Regrant(ctx, "missing"); !errors.Is(err, models.ErrInvitationNotFound) {
		t.Errorf("unknown token: %v", err)
	}
}

func TestSend(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)

	if err := h.svc.Send(context.Background(), inv, "Olivia Owner", "See you soon"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(h.notifier.sent) != 1 {
		t.Fatalf("sent %d", len(h.notifier.sent))
	}
	d := h.notifier.sent[0]
	want := "https://acme.pic2data.fi/join?org=acme&token=" + inv.Token
	if d.AcceptURL != want {
		t.Errorf("AcceptURL = %q, want %q", d.AcceptURL, want)
	}
	if d.To != "alice@x.com" || d.OrganizationName != "Acme" || d.InviterName != "Olivia Owner" {
		t.Errorf("email data = %+v", d)
	}
	if !d.ExpiresAt.Equal(*inv.ExpiresAt) {
		t.Errorf("ExpiresAt = %v", d.ExpiresAt)
	}
}

func TestSend_ReportsFailure(t *testing.T) {
	h := newHarness(t)
	inv := h.invite(t, "alice@x.com", models.RoleUser)
	h.notifier.err = errors.New("smtp down")

	if err := h.svc.Send(context.Background(), inv, "", ""); err == nil {
		t.Error("delivery failure should be reported")
	}
	if len(h.notifier.sent) != 1 {
		t.Error("delivery should be attempted exactly once")
	}
}

func TestListPending_SkipsExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	old := h.invite(t, "old@x.com", models.RoleUser)
	h.now = h.now.Add(6 * 24 * time.Hour)
	fresh := h.invite(t, "new@x.com", models.RoleUser)
	h.now = h.now.Add(2 * 24 * time.Hour) // old has expired, fresh has not

	list, err := h.svc.ListPending(ctx, h.org.ID)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Errorf("list = %+v, want only %s (not %s)", list, fresh.ID.Hex(), old.ID.Hex())
	}
}

func TestPurgeExpired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	yearEnd := h.now.Add(365 * 24 * time.Hour)
	h.org.License.ExpiresAt = &yearEnd
	stale := h.invite(t, "stale@x.com", models.RoleUser)
	used := h.invite(t, "used@x.com", models.RoleUser)
	if _, err := h.svc.Accept(ctx, used.Token, "user-1"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	h.now = h.now.Add(38 * 24 * time.Hour) // stale expired 31 days ago
	fresh := h.invite(t, "fresh@x.com", models.RoleUser)

	n, err := h.svc.PurgeExpired(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	if got := h.store.status(stale.Token); got != "" {
		t.Errorf("stale invitation still stored with status %q", got)
	}
	if got := h.store.status(used.Token); got != models.InvitationAccepted {
		t.Errorf("accepted invitation status = %q, want kept", got)
	}
	if got := h.store.status(fresh.Token); got != models.InvitationPending {
		t.Errorf("fresh invitation status = %q, want kept", got)
	}
}
