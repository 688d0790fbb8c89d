package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// DefaultValidity is used when no validity window is configured
const DefaultValidity = 60 * time.Minute

// Store serves the four cache documents. Directory and identity snapshots
// expire after the validity window; notification history and the disabled
// ledger only go away when deleted explicitly.
//
// Every document read from the backing store is kept in an in-process mirror
// together with its load time. Mirrors are re-validated on each read and are
// only replaced after the backing store accepted the write, so they never get
// ahead of durable state.
type Store struct {
	docs     interfaces.DocumentStore
	validity time.Duration
	now      func() time.Time

	users   map[types.CacheKind]*model.CacheEntry[model.UserSnapshot]
	history *model.NotificationHistory
	ledger  *model.DisabledLedger
}

var _ interfaces.UserCache = &Store{}

type Option func(*Store)

// WithValidity sets the lifetime of directory and identity snapshots
func WithValidity(d time.Duration) Option {
	return func(s *Store) {
		s.validity = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(docs interfaces.DocumentStore, opts ...Option) *Store {
	s := &Store{
		docs:     docs,
		validity: DefaultValidity,
		now:      time.Now,
		users:    make(map[types.CacheKind]*model.CacheEntry[model.UserSnapshot]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validity returns the configured validity window
func (s *Store) Validity() time.Duration {
	return s.validity
}

// Users returns the snapshot of a time-bounded kind when it exists and is
// within the validity window. A missing, expired or unreadable document is a
// miss, never an error.
func (s *Store) Users(ctx context.Context, kind types.CacheKind) (model.UserSnapshot, bool) {
	entry, ok := s.loadUsers(ctx, kind)
	if !ok {
		return nil, false
	}
	return entry.Data.Clone(), true
}

// UserByID looks up one user of a time-bounded kind. warm reports whether a
// valid snapshot exists; a nil user with warm set means the user is absent.
func (s *Store) UserByID(ctx context.Context, kind types.CacheKind, id types.UserID) (user *model.UserRecord, warm bool) {
	entry, ok := s.loadUsers(ctx, kind)
	if !ok {
		return nil, false
	}
	if u, found := entry.Data[id]; found {
		return u.Clone(), true
	}
	return nil, true
}

// LoadedAt returns when the snapshot of kind was written, if it is valid
func (s *Store) LoadedAt(ctx context.Context, kind types.CacheKind) (time.Time, bool) {
	entry, ok := s.loadUsers(ctx, kind)
	if !ok {
		return time.Time{}, false
	}
	return entry.LoadedAt, true
}

func (s *Store) loadUsers(ctx context.Context, kind types.CacheKind) (*model.CacheEntry[model.UserSnapshot], bool) {
	logger := logging.From(ctx).With("cache", kind)

	if !kind.TimeBounded() {
		logger.Warn("user snapshot requested for a cache kind that does not hold users")
		return nil, false
	}

	if entry, ok := s.users[kind]; ok {
		if !entry.ExpiredAt(s.now(), s.validity) {
			logger.Debug("serving user snapshot from memory")
			return entry, true
		}
		logger.Debug("in-memory user snapshot expired")
		delete(s.users, kind)
		return nil, false
	}

	var entry model.CacheEntry[model.UserSnapshot]
	if !s.read(ctx, kind, &entry) {
		return nil, false
	}
	if entry.ExpiredAt(s.now(), s.validity) {
		logger.Debug("persisted user snapshot expired", "loaded_at", entry.LoadedAt)
		return nil, false
	}

	if entry.Data == nil {
		entry.Data = model.UserSnapshot{}
	}
	for id, u := range entry.Data {
		if u == nil {
			delete(entry.Data, id)
			continue
		}
		u.Normalize()
	}

	s.users[kind] = &entry
	logger.Debug("serving user snapshot from persisted document", "users", len(entry.Data))
	return &entry, true
}

// PutUsers replaces the snapshot of a time-bounded kind, stamped with the
// current time.
func (s *Store) PutUsers(ctx context.Context, kind types.CacheKind, users model.UserSnapshot) error {
	if !kind.TimeBounded() {
		return goerr.New("cache kind does not hold users", goerr.V("kind", kind))
	}
	if users == nil {
		users = model.UserSnapshot{}
	}

	entry := &model.CacheEntry[model.UserSnapshot]{
		Data:     users.Clone(),
		LoadedAt: s.now(),
	}
	if err := s.write(ctx, kind, entry); err != nil {
		return err
	}

	s.users[kind] = entry
	logging.From(ctx).Debug("user snapshot saved", "cache", kind, "users", len(users))
	return nil
}

// NotificationHistory returns a copy of the persisted history, or an empty
// history when none exists yet.
func (s *Store) NotificationHistory(ctx context.Context) model.NotificationHistory {
	if s.history != nil {
		return s.history.Clone()
	}

	var entry model.CacheEntry[model.NotificationHistory]
	if !s.read(ctx, types.CacheKindNotificationHistory, &entry) || entry.Data == nil {
		entry.Data = model.NotificationHistory{}
	}
	s.history = &entry.Data
	return entry.Data.Clone()
}

// DisabledLedger returns a copy of the persisted ledger, or an empty ledger
// when none exists yet.
func (s *Store) DisabledLedger(ctx context.Context) model.DisabledLedger {
	if s.ledger != nil {
		return s.ledger.Clone()
	}

	var entry model.CacheEntry[model.DisabledLedger]
	if !s.read(ctx, types.CacheKindDisabledLedger, &entry) || entry.Data == nil {
		entry.Data = model.DisabledLedger{}
	}
	s.ledger = &entry.Data
	return entry.Data.Clone()
}

// Batch groups documents written together. Nil members are skipped.
type Batch struct {
	Directory           model.UserSnapshot
	Identity            model.UserSnapshot
	NotificationHistory model.NotificationHistory
	DisabledLedger      model.DisabledLedger
}

// Save writes every non-nil member of batch. Each document is written on its
// own: a failure is collected and the remaining documents are still written.
func (s *Store) Save(ctx context.Context, batch Batch) error {
	var errs []error

	if batch.Directory != nil {
		if err := s.PutUsers(ctx, types.CacheKindDirectory, batch.Directory); err != nil {
			errs = append(errs, err)
		}
	}
	if batch.Identity != nil {
		if err := s.PutUsers(ctx, types.CacheKindIdentity, batch.Identity); err != nil {
			errs = append(errs, err)
		}
	}
	if batch.NotificationHistory != nil {
		history := batch.NotificationHistory.Clone()
		entry := &model.CacheEntry[model.NotificationHistory]{Data: history, LoadedAt: s.now()}
		if err := s.write(ctx, types.CacheKindNotificationHistory, entry); err != nil {
			errs = append(errs, err)
		} else {
			s.history = &history
		}
	}
	if batch.DisabledLedger != nil {
		ledger := batch.DisabledLedger.Clone()
		entry := &model.CacheEntry[model.DisabledLedger]{Data: ledger, LoadedAt: s.now()}
		if err := s.write(ctx, types.CacheKindDisabledLedger, entry); err != nil {
			errs = append(errs, err)
		} else {
			s.ledger = &ledger
		}
	}

	return errors.Join(errs...)
}

// IsStale reports whether any of kinds is missing or expired. Without
// arguments every time-bounded kind is checked. Unbounded kinds are never
// stale.
func (s *Store) IsStale(ctx context.Context, kinds ...types.CacheKind) bool {
	if len(kinds) == 0 {
		kinds = types.TimeBoundedCacheKinds()
	}
	for _, kind := range kinds {
		if !kind.TimeBounded() {
			continue
		}
		if _, ok := s.loadUsers(ctx, kind); !ok {
			return true
		}
	}
	return false
}

// Invalidate deletes one document and its mirror
func (s *Store) Invalidate(ctx context.Context, kind types.CacheKind) error {
	_, err := s.remove(ctx, kind)
	return err
}

// Clear deletes the documents of kinds, by default every time-bounded kind,
// and reports whether anything existed. Deletion continues past failures.
func (s *Store) Clear(ctx context.Context, kinds ...types.CacheKind) (bool, error) {
	if len(kinds) == 0 {
		kinds = types.TimeBoundedCacheKinds()
	}

	var deleted bool
	var errs []error
	for _, kind := range kinds {
		ok, err := s.remove(ctx, kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = deleted || ok
	}
	return deleted, errors.Join(errs...)
}

func (s *Store) remove(ctx context.Context, kind types.CacheKind) (bool, error) {
	switch kind {
	case types.CacheKindNotificationHistory:
		s.history = nil
	case types.CacheKindDisabledLedger:
		s.ledger = nil
	default:
		delete(s.users, kind)
	}

	deleted, err := s.docs.Delete(ctx, kind.String())
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete cache document", goerr.V("kind", kind))
	}
	if deleted {
		logging.From(ctx).Debug("cache document deleted", "cache", kind)
	}
	return deleted, nil
}

func (s *Store) read(ctx context.Context, kind types.CacheKind, v any) bool {
	logger := logging.From(ctx).With("cache", kind)

	data, err := s.docs.Get(ctx, kind.String())
	if errors.Is(err, interfaces.ErrDocumentNotFound) {
		logger.Debug("cache document does not exist")
		return false
	}
	if err != nil {
		logger.Warn("failed to read cache document", "error", err)
		return false
	}

	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("cache document is corrupted, treating as missing", "error", err)
		return false
	}
	return true
}

func (s *Store) write(ctx context.Context, kind types.CacheKind, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to encode cache document", goerr.V("kind", kind))
	}
	if err := s.docs.Put(ctx, kind.String(), data); err != nil {
		return goerr.Wrap(err, "failed to persist cache document", goerr.V("kind", kind))
	}
	return nil
}
