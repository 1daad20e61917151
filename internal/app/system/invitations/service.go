// Package invitations issues organization invitations and redeems them
// exactly once.
package invitations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	invitationstore "github.com/dalemusser/tenantgate/internal/app/store/invitations"
	organizationstore "github.com/dalemusser/tenantgate/internal/app/store/organizations"
	"github.com/dalemusser/tenantgate/internal/app/system/access"
	"github.com/dalemusser/tenantgate/internal/app/system/inputval"
	"github.com/dalemusser/tenantgate/internal/app/system/license"
	"github.com/dalemusser/tenantgate/internal/app/system/mailer"
	"github.com/dalemusser/tenantgate/internal/app/system/normalize"
	"github.com/dalemusser/tenantgate/internal/app/system/routing"
	"github.com/dalemusser/tenantgate/internal/app/system/txn"
	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Default lifetimes. TTL stamps ExpiresAt on new invitations; FallbackTTL
// applies only to rows without an ExpiresAt. They are configured separately.
const (
	DefaultTTL         = 7 * 24 * time.Hour
	DefaultFallbackTTL = 7 * 24 * time.Hour
)

// TokenBytes is the entropy of an invitation token (hex-encoded on the wire).
const TokenBytes = 32

var (
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrInvalidRole        = errors.New("invitations may grant the admin or user role only")
	ErrOrganizationAbsent = errors.New("organization not found")
	ErrNotAccepted        = errors.New("invitation has not been accepted")
)

// Store is the invitation persistence the service needs.
type Store interface {
	Create(ctx context.Context, inv models.Invitation) (models.Invitation, error)
	FindPendingByToken(ctx context.Context, token string) (models.Invitation, error)
	GetByToken(ctx context.Context, token string) (models.Invitation, error)
	MarkAccepted(ctx context.Context, token, userID string, at time.Time) (models.Invitation, error)
	RevertAcceptance(ctx context.Context, token, userID string, acceptedAt time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListPending(ctx context.Context, orgID primitive.ObjectID) ([]models.Invitation, error)
	DeleteExpiredPending(ctx context.Context, cutoff time.Time, fallback time.Duration) (int64, error)
}

// AccessGranter writes access rows. Grant is idempotent for an existing
// active grant.
type AccessGranter interface {
	Grant(ctx context.Context, userID string, orgID primitive.ObjectID, role string, invitationID *primitive.ObjectID) (models.OrganizationAccess, bool, error)
}

// Directory loads an organization with its license attached.
type Directory interface {
	LookupID(ctx context.Context, id primitive.ObjectID) (*models.Organization, error)
}

// TxRunner runs fn atomically where the backing store allows it.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier delivers invitation emails.
type Notifier interface {
	SendInvitation(ctx context.Context, data mailer.InvitationEmailData) error
}

// Deps are the collaborators of a Service. Notifier may be nil.
type Deps struct {
	Store     Store
	Access    AccessGranter
	Directory Directory
	Resolver  *access.Resolver
	License   *license.Validator
	Tx        TxRunner
	Notifier  Notifier
	Links     routing.Links
}

// Config holds lifetimes and the clock.
type Config struct {
	TTL         time.Duration
	FallbackTTL time.Duration
	Now         func() time.Time
}

// Service implements the invitation lifecycle.
type Service struct {
	d   Deps
	cfg Config
	log *zap.Logger
}

// New builds a Service. Zero lifetimes use the defaults.
func New(d Deps, cfg Config, logger *zap.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FallbackTTL <= 0 {
		cfg.FallbackTTL = DefaultFallbackTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{d: d, cfg: cfg, log: logger}
}

func (s *Service) now() time.Time { return s.cfg.Now().UTC() }

// NewToken returns a hex-encoded random token of TokenBytes bytes.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateInput describes a new invitation.
type CreateInput struct {
	OrganizationID primitive.ObjectID
	Email          string
	Role           string
	InvitedBy      string
}

// Create issues a pending invitation. The organization's license must be
// valid; otherwise models.ErrInvalidLicense is returned and no token is made.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Invitation, error) {
	email := normalize.Email(in.Email)
	if !inputval.IsValidEmail(email) {
		return models.Invitation{}, ErrInvalidEmail
	}
	role := normalize.Role(in.Role)
	if !inputval.IsInvitableRole(role) {
		return models.Invitation{}, ErrInvalidRole
	}

	org, err := s.organization(ctx, in.OrganizationID)
	if err != nil {
		return models.Invitation{}, err
	}
	if !s.d.License.IsValid(org.License) {
		s.log.Info("invitation refused: license not valid",
			zap.String("org", org.Slug),
			zap.String("reason", string(s.d.License.Describe(org.License))))
		return models.Invitation{}, models.ErrInvalidLicense
	}

	now := s.now()
	exp := now.Add(s.cfg.TTL)
	inv := models.Invitation{
		OrganizationID: org.ID,
		EmailAddress:   email,
		Role:           role,
		CreatedAt:      now,
		ExpiresAt:      &exp,
		InvitedBy:      in.InvitedBy,
	}

	// A token collision is astronomically unlikely; retry a couple of times
	// rather than surface it.
	for attempt := 0; ; attempt++ {
		if inv.Token, err = NewToken(); err != nil {
			return models.Invitation{}, err
		}
		created, err := s.d.Store.Create(ctx, inv)
		if errors.Is(err, invitationstore.ErrDuplicateToken) && attempt < 2 {
			continue
		}
		if err != nil {
			return models.Invitation{}, fmt.Errorf("create invitation: %w", err)
		}
		created.Organization = org
		s.log.Info("invitation created",
			zap.String("org", org.Slug),
			zap.String("invitation_id", created.ID.Hex()),
			zap.String("role", role),
			zap.Time("expires_at", exp))
		return created, nil
	}
}

// GetByToken returns a pending, unexpired invitation with its organization
// attached. Accepted, expired and unknown tokens all yield
// models.ErrInvitationNotFound.
func (s *Service) GetByToken(ctx context.Context, token string) (models.Invitation, error) {
	if token == "" {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	inv, err := s.d.Store.FindPendingByToken(ctx, token)
	if errors.Is(err, invitationstore.ErrNotFound) {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	if err != nil {
		return models.Invitation{}, fmt.Errorf("load invitation: %w", err)
	}
	return s.live(ctx, inv)
}

// live rejects expired invitations and attaches the organization.
func (s *Service) live(ctx context.Context, inv models.Invitation) (models.Invitation, error) {
	if s.expired(inv) {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	org, err := s.organization(ctx, inv.OrganizationID)
	if errors.Is(err, ErrOrganizationAbsent) {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	if err != nil {
		return models.Invitation{}, err
	}
	inv.Organization = org
	return inv, nil
}

func (s *Service) expired(inv models.Invitation) bool {
	return s.now().After(inv.EffectiveExpiry(s.cfg.FallbackTTL))
}

// Accept redeems token for userID.
//
// The pending→accepted transition is conditional, so among concurrent callers
// exactly one succeeds and the rest get models.ErrInvitationAlreadyAccepted.
// The transition and the access grant run in one transaction; when the store
// cannot provide one and the grant fails, the transition is reverted and
// models.ErrAcceptTransitionFailed is returned.
//
// An accepted token yields models.ErrInvitationAlreadyAccepted; an unknown
// or expired one yields models.ErrInvitationNotFound.
func (s *Service) Accept(ctx context.Context, token, userID string) (models.Invitation, error) {
	if userID == "" {
		return models.Invitation{}, models.ErrRegistrationFailed
	}
	if token == "" {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	inv, err := s.d.Store.GetByToken(ctx, token)
	if errors.Is(err, invitationstore.ErrNotFound) {
		return models.Invitation{}, models.ErrInvitationNotFound
	}
	if err != nil {
		return models.Invitation{}, fmt.Errorf("load invitation: %w", err)
	}
	if inv.Status == models.InvitationAccepted {
		return models.Invitation{}, models.ErrInvitationAlreadyAccepted
	}
	if inv, err = s.live(ctx, inv); err != nil {
		return models.Invitation{}, err
	}

	// A new joiner has no access row yet, so only a license denial rejects.
	if err := s.d.Resolver.Denial(ctx, userID, inv.Organization); err != nil && !errors.Is(err, models.ErrNoAccess) {
		return models.Invitation{}, err
	}

	var (
		accepted      models.Invitation
		grantErr      error
		transactional bool
	)
	at := s.now()
	err = s.d.Tx.Run(ctx, func(ctx context.Context) error {
		grantErr = nil
		transactional = txn.InTransaction(ctx)
		a, err := s.d.Store.MarkAccepted(ctx, token, userID, at)
		if errors.Is(err, invitationstore.ErrNotPending) {
			return models.ErrInvitationAlreadyAccepted
		}
		if err != nil {
			return fmt.Errorf("mark invitation accepted: %w", err)
		}
		if _, _, err := s.d.Access.Grant(ctx, userID, a.OrganizationID, a.Role, &a.ID); err != nil {
			grantErr = err
			return err
		}
		accepted = a
		return nil
	})
	if err != nil {
		if grantErr == nil {
			return models.Invitation{}, err
		}
		// A transaction already rolled the acceptance back. Without one, undo
		// only this call's acceptance so a concurrent winner is left alone.
		if !transactional {
			if rerr := s.d.Store.RevertAcceptance(ctx, token, userID, at); rerr != nil && !errors.Is(rerr, invitationstore.ErrNotFound) {
				s.log.Error("failed to revert invitation acceptance",
					zap.String("invitation_id", inv.ID.Hex()),
					zap.String("user_id", userID),
					zap.Error(rerr))
			}
		}
		s.log.Warn("invitation access grant failed",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.String("user_id", userID),
			zap.Error(grantErr))
		return models.Invitation{}, fmt.Errorf("%w: %w", models.ErrAcceptTransitionFailed, grantErr)
	}

	accepted.Organization = inv.Organization
	s.log.Info("invitation accepted",
		zap.String("invitation_id", accepted.ID.Hex()),
		zap.String("org", inv.Organization.Slug),
		zap.String("user_id", userID),
		zap.String("role", accepted.Role))
	return accepted, nil
}

// Delete removes an invitation.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	n, err := s.d.Store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if n == 0 {
		return models.ErrInvitationNotFound
	}
	return nil
}

// Send emails inv to its recipient. Delivery is attempted once and the
// error, if any, is returned to the caller.
func (s *Service) Send(ctx context.Context, inv models.Invitation, inviterName, note string) error {
	if s.d.Notifier == nil {
		s.log.Warn("no notifier configured; invitation email not sent",
			zap.String("invitation_id", inv.ID.Hex()))
		return nil
	}
	org := inv.Organization
	if org == nil {
		var err error
		if org, err = s.organization(ctx, inv.OrganizationID); err != nil {
			return err
		}
	}
	data := mailer.InvitationEmailData{
		To:               inv.EmailAddress,
		OrganizationName: org.Name,
		Role:             inv.Role,
		InviterName:      inviterName,
		AcceptURL:        s.d.Links.InviteURL(org.Slug, inv.Token),
		Note:             note,
	}
	if inv.ExpiresAt != nil {
		data.ExpiresAt = *inv.ExpiresAt
	}
	return s.d.Notifier.SendInvitation(ctx, data)
}

// Regrant re-runs the access grant for an accepted invitation. It repairs
// an acceptance whose grant was lost and is a no-op when the grant exists.
func (s *Service) Regrant(ctx context.Context, token string) (models.OrganizationAccess, bool, error) {
	inv, err := s.d.Store.GetByToken(ctx, token)
	if errors.Is(err, invitationstore.ErrNotFound) {
		return models.OrganizationAccess{}, false, models.ErrInvitationNotFound
	}
	if err != nil {
		return models.OrganizationAccess{}, false, fmt.Errorf("load invitation: %w", err)
	}
	if inv.Status != models.InvitationAccepted || inv.AcceptedBy == "" {
		return models.OrganizationAccess{}, false, ErrNotAccepted
	}
	row, created, err := s.d.Access.Grant(ctx, inv.AcceptedBy, inv.OrganizationID, inv.Role, &inv.ID)
	if err != nil {
		return models.OrganizationAccess{}, false, fmt.Errorf("regrant access: %w", err)
	}
	if created {
		s.log.Info("access regranted from invitation",
			zap.String("invitation_id", inv.ID.Hex()),
			zap.String("user_id", inv.AcceptedBy))
	}
	return row, created, nil
}

// ListPending returns the organization's unexpired pending invitations.
func (s *Service) ListPending(ctx context.Context, orgID primitive.ObjectID) ([]models.Invitation, error) {
	all, err := s.d.Store.ListPending(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	out := all[:0]
	for _, inv := range all {
		if !s.expired(inv) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Service) organization(ctx context.Context, id primitive.ObjectID) (*models.Organization, error) {
	org, err := s.d.Directory.LookupID(ctx, id)
	if err != nil {
		if errors.Is(err, organizationstore.ErrNotFound) {
			return nil, ErrOrganizationAbsent
		}
		return nil, fmt.Errorf("load organization: %w", err)
	}
	return org, nil
}

// PurgeExpired deletes pending invitations that expired more than retention
// ago. Expired invitations already behave as missing; this only reclaims
// storage.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.d.Store.DeleteExpiredPending(ctx, s.now().Add(-retention), s.cfg.FallbackTTL)
	if err != nil {
		return 0, fmt.Errorf("purge expired invitations: %w", err)
	}
	return n, nil
}
