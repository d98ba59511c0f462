// Package actors manages the participant registry. Every wallet is bound to
// at most one actor so settlement events can be attributed unambiguously.
package actors

import (
	"context"
	"strings"

	"github.com/ReTrace-Network/ledger_layer/internal/app/domain/actor"
	"github.com/ReTrace-Network/ledger_layer/internal/app/storage"
	"github.com/ReTrace-Network/ledger_layer/internal/errors"
	"github.com/ReTrace-Network/ledger_layer/pkg/logger"
)

// Service exposes actor registration and lookup.
type Service struct {
	store storage.ActorStore
	log   *logger.Logger
}

// New creates the actors service.
func New(store storage.ActorStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("actors")
	}
	return &Service{store: store, log: log}
}

// Register creates a new actor with the given role and wallet.
func (s *Service) Register(ctx context.Context, role actor.Role, wallet, name string) (actor.Actor, error) {
	if !role.Valid() {
		return actor.Actor{}, errors.Validation("unknown role %q", role)
	}
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return actor.Actor{}, errors.Validation("wallet address is required")
	}

	act, err := s.store.CreateActor(ctx, actor.Actor{Role: role, Wallet: wallet, Name: strings.TrimSpace(name)})
	if err != nil {
		return actor.Actor{}, err
	}
	s.log.WithField("actor_id", act.ID).Infof("registered %s %s", act.Role, act.Wallet)
	return act, nil
}

// Get returns an actor by id.
func (s *Service) Get(ctx context.Context, id string) (actor.Actor, error) {
	return s.store.GetActor(ctx, id)
}

// GetByWallet returns the actor bound to the given wallet.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (actor.Actor, error) {
	return s.store.GetActorByWallet(ctx, wallet)
}

// List returns all registered actors.
func (s *Service) List(ctx context.Context) ([]actor.Actor, error) {
	return s.store.ListActors(ctx)
}

// RequireRole loads an actor and checks it holds one of the given roles.
func (s *Service) RequireRole(ctx context.Context, id, action string, roles ...actor.Role) (actor.Actor, error) {
	act, err := s.store.GetActor(ctx, id)
	if err != nil {
		return actor.Actor{}, err
	}
	for _, role := range roles {
		if act.Role == role {
			return act, nil
		}
	}
	return actor.Actor{}, errors.Forbidden(string(act.Role), action)
}
