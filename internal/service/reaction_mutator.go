package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/KTB-loadTest/Team9/internal/cache"
	"github.com/KTB-loadTest/Team9/internal/models"
	"github.com/KTB-loadTest/Team9/internal/repository"
)

const (
	DirectionAdd    = "add"
	DirectionRemove = "remove"
)

// ErrBadDirection rejects toggle requests before any state is
// mutated.
var ErrBadDirection = errors.New("unknown reaction direction")

// ErrMessageNotFound is returned when a toggled message has no body
// in the selected backing store.
var ErrMessageNotFound = errors.New("message not found")

// mapNotFound folds the per-store sentinels into the service-level
// not-found error.
func mapNotFound(err error) error {
	if errors.Is(err, cache.ErrNotFound) || errors.Is(err, repository.ErrNotFound) {
		return ErrMessageNotFound
	}
	return err
}

// ReactionMutator toggles one user's reaction on one message and
// returns the message with its post-mutation reaction map. Two
// implementations exist: the cache fast path and the atomic document
// path. A given room uses exactly one of them.
type ReactionMutator interface {
	Toggle(ctx context.Context, messageID, reaction, direction, userID string) (*models.Message, error)
}

// MutatorSelector picks the reaction path for a room. Implementations
// must be stable: the same room always maps to the same path.
type MutatorSelector interface {
	Mutator(roomID string) ReactionMutator
}

// StaticSelector serves every room from one path, matching a
// deployment-wide configuration flag.
type StaticSelector struct{ M ReactionMutator }

func (s StaticSelector) Mutator(string) ReactionMutator { return s.M }

// CacheReactionMutator mutates the reaction index and re-reads the
// cached body. The index mutation and the body read are independent:
// no lock spans them, which is safe because set add/remove is
// idempotent and the body is immutable.
type CacheReactionMutator struct {
	messages  MessageStore
	reactions ReactionStore
}

func NewCacheReactionMutator(messages MessageStore, reactions ReactionStore) *CacheReactionMutator {
	return &CacheReactionMutator{messages: messages, reactions: reactions}
}

func (m *CacheReactionMutator) Toggle(ctx context.Context, messageID, reaction, direction, userID string) (*models.Message, error) {
	switch direction {
	case DirectionAdd:
		if err := m.reactions.Add(ctx, messageID, reaction, userID); err != nil {
			return nil, err
		}
	case DirectionRemove:
		if err := m.reactions.Remove(ctx, messageID, reaction, userID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadDirection, direction)
	}

	msg, err := m.messages.FindByID(ctx, messageID)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	merged, err := m.reactions.ReadBack(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	reactions, ok := merged[messageID]
	if !ok {
		reactions = map[string][]string{}
	}
	msg.Reactions = reactions
	return msg, nil
}

// DocumentReactionMutator performs the mutation as a single atomic
// find-and-modify on the durable document, for rooms where the cache
// is not the system of record.
type DocumentReactionMutator struct {
	repo DocumentMutator
}

func NewDocumentReactionMutator(repo DocumentMutator) *DocumentReactionMutator {
	return &DocumentReactionMutator{repo: repo}
}

func (m *DocumentReactionMutator) Toggle(ctx context.Context, messageID, reaction, direction, userID string) (*models.Message, error) {
	if direction != DirectionAdd && direction != DirectionRemove {
		return nil, fmt.Errorf("%w: %q", ErrBadDirection, direction)
	}
	msg, err := m.repo.UpdateReactionsAtomic(ctx, messageID, reaction, direction, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if msg.Reactions == nil {
		msg.Reactions = map[string][]string{}
	}
	// $pull leaves empty arrays behind; drop them so both paths
	// report the same shape for a kind nobody holds anymore
	for kind, users := range msg.Reactions {
		if len(users) == 0 {
			delete(msg.Reactions, kind)
		}
	}
	return msg, nil
}
