package usecase

import (
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
)

type UseCases struct {
	directory interfaces.DirectorySource
	identity  interfaces.IdentitySource
	notifier  interfaces.Notifier
	cache     *cache.Store

	syncConfig SyncConfig
	policy     model.PasswordPolicy
	servers    []ServerTarget
	dial       DialFunc

	Sync     *SyncUseCase
	Password *PasswordUseCase
	Account  *AccountUseCase
	CSV      *CSVUseCase
	Cache    *CacheUseCase
	Server   *ServerUseCase
}

type Option func(*UseCases)

func WithSyncConfig(cfg SyncConfig) Option {
	return func(uc *UseCases) {
		uc.syncConfig = cfg
	}
}

func WithPasswordPolicy(policy model.PasswordPolicy) Option {
	return func(uc *UseCases) {
		uc.policy = policy
	}
}

// WithServers sets the endpoints probed by the server check
func WithServers(targets ...ServerTarget) Option {
	return func(uc *UseCases) {
		uc.servers = append(uc.servers, targets...)
	}
}

// WithDialer replaces the TCP dialer of the server check
func WithDialer(dial DialFunc) Option {
	return func(uc *UseCases) {
		uc.dial = dial
	}
}

func New(directory interfaces.DirectorySource, identity interfaces.IdentitySource, notifier interfaces.Notifier, store *cache.Store, opts ...Option) *UseCases {
	uc := &UseCases{
		directory: directory,
		identity:  identity,
		notifier:  notifier,
		cache:     store,
		policy:    DefaultPasswordPolicy(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Sync = NewSyncUseCase(directory, identity, notifier, uc.syncConfig)
	uc.Password = NewPasswordUseCase(identity, notifier, store, uc.policy)
	uc.Account = NewAccountUseCase(identity, notifier)
	uc.CSV = NewCSVUseCase(identity, notifier)
	uc.Cache = NewCacheUseCase(directory, identity, store)
	uc.Server = NewServerUseCase(uc.servers, uc.dial)

	return uc
}
