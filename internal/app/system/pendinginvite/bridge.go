package pendinginvite

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/tenantgate/internal/domain/models"
	"go.uber.org/zap"
)

// DefaultTTL bounds how old a recovered record may be.
const DefaultTTL = 24 * time.Hour

// Config configures the cookie stores.
type Config struct {
	SessionKey string
	Apex       string        // shared cookie is scoped to "." + Apex
	TTL        time.Duration // pending_invite_ttl
	Secure     bool
	Now        func() time.Time
}

// Bridge writes a pending invitation to every store and recovers it from the
// first store that still holds a valid copy.
type Bridge struct {
	stores []Store
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// New builds the durable, volatile and shared cookie stores.
func New(cfg Config, logger *zap.Logger) (*Bridge, error) {
	if len(cfg.SessionKey) < 32 {
		return nil, ErrWeakKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	specs := []cookieStore{
		{name: Durable, cookie: "tg_pending_invite", lifetime: cfg.TTL, persist: true},
		{name: Volatile, cookie: "tg_pending_invite_tab", lifetime: cfg.TTL},
		{name: Shared, cookie: "tg_pending_invite_shared", domain: sharedDomain(cfg.Apex), lifetime: SharedTTL, persist: true},
	}
	stores := make([]Store, 0, len(specs))
	for i := range specs {
		s := specs[i]
		codec, err := deriveCodec(cfg.SessionKey, s.name, s.lifetime)
		if err != nil {
			return nil, err
		}
		s.codec = codec
		s.secure = cfg.Secure
		s.now = cfg.Now
		stores = append(stores, &s)
	}
	return NewWithStores(stores, cfg.TTL, cfg.Now, logger), nil
}

// NewWithStores builds a Bridge over arbitrary stores, probed in order.
func NewWithStores(stores []Store, ttl time.Duration, now func() time.Time, logger *zap.Logger) *Bridge {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{stores: stores, ttl: ttl, now: now, log: logger}
}

// Store saves pc in every store. It fails only when no store accepted it.
func (b *Bridge) Store(w http.ResponseWriter, r *http.Request, pc models.PendingInvitation) error {
	if pc.Timestamp.IsZero() {
		pc.Timestamp = b.now().UTC()
	}
	var errs []error
	for _, s := range b.stores {
		if err := s.Save(w, r, pc); err != nil {
			b.log.Warn("pending invitation not saved",
				zap.String("store", s.Name()),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) == len(b.stores) {
		return errors.Join(append([]error{errors.New("pendinginvite: no store accepted the record")}, errs...)...)
	}
	return nil
}

// Recover returns the first decodable, unexpired record and clears every
// store, whether or not anything was found.
func (b *Bridge) Recover(w http.ResponseWriter, r *http.Request) (models.PendingInvitation, bool) {
	defer b.Clear(w, r)

	now := b.now()
	for _, s := range b.stores {
		pc, err := s.Load(r)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			b.log.Info("pending invitation unreadable",
				zap.String("store", s.Name()),
				zap.Error(err))
			continue
		}
		if pc.Token == "" {
			continue
		}
		if now.Sub(pc.Timestamp) > b.ttl {
			b.log.Info("pending invitation too old",
				zap.String("store", s.Name()),
				zap.Time("timestamp", pc.Timestamp))
			continue
		}
		return pc, true
	}
	return models.PendingInvitation{}, false
}

// Clear removes the record from every store.
func (b *Bridge) Clear(w http.ResponseWriter, r *http.Request) {
	for _, s := range b.stores {
		s.Clear(w, r)
	}
}
