// README: Address service: saved-address management and location resolution.
package address

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"laoyou/internal/types"
)

var (
	ErrBadRequest      = errors.New("bad address request")
	ErrNotFound        = errors.New("address not found")
	ErrForbidden       = errors.New("address belongs to another user")
	ErrInvalidLocation = errors.New("invalid location")
)

type Service struct {
	store Store
	clock func() time.Time
	newID func() types.ID
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		clock: time.Now,
		newID: func() types.ID { return types.ID(uuid.NewString()) },
	}
}

// WithClock overrides the time source; deterministic tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithIDFunc overrides the id generator.
func (s *Service) WithIDFunc(newID func() types.ID) *Service {
	s.newID = newID
	return s
}

// AddInput describes a new saved address.
type AddInput struct {
	UserID       types.ID
	Location     types.Location
	DisplayName  string
	Tag          Tag
	Priority     int
	IsDefault    bool
	BuildingInfo string
	Note         string
}

// Add saves a new common address for the user. Setting it as default clears
// the previous default atomically.
func (s *Service) Add(ctx context.Context, in AddInput) (*CommonAddress, error) {
	if in.UserID == "" || strings.TrimSpace(in.DisplayName) == "" {
		return nil, ErrBadRequest
	}
	if !in.Location.Valid() {
		return nil, ErrInvalidLocation
	}
	if in.Tag == "" {
		in.Tag = TagOther
	}
	if !ValidTag(in.Tag) {
		return nil, ErrBadRequest
	}
	if in.Priority < 1 || in.Priority > 5 {
		in.Priority = 5
	}

	now := s.clock()
	a := &CommonAddress{
		ID:           s.newID(),
		UserID:       in.UserID,
		Location:     in.Location,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Tag:          in.Tag,
		Priority:     in.Priority,
		BuildingInfo: in.BuildingInfo,
		Note:         in.Note,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastUsedAt:   now,
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}
	if in.IsDefault {
		if err := s.store.SetDefault(ctx, in.UserID, a.ID, now); err != nil {
			return nil, err
		}
		a.IsDefault = true
	}
	return a, nil
}

// List returns the user's addresses ordered default-first, then by priority,
// then by most recent use.
func (s *Service) List(ctx context.Context, userID types.ID) ([]CommonAddress, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListByUser(ctx, userID)
}

// SetDefault makes the given address the user's single default.
func (s *Service) SetDefault(ctx context.Context, userID, id types.ID) error {
	if userID == "" || id == "" {
		return ErrBadRequest
	}
	return s.store.SetDefault(ctx, userID, id, s.clock())
}

// Resolve normalizes a location reference into a canonical Location.
//
// saved:   the user's own CommonAddress; bumps its last-used timestamp.
// curated: a shared QuickDestination; bumps the user's favorite marker.
// manual:  an ad-hoc Location, validated.
//
// Usage-tracking bumps are best effort and never fail the resolution.
func (s *Service) Resolve(ctx context.Context, userID types.ID, ref Ref) (types.Location, error) {
	switch ref.Kind {
	case RefSaved:
		if ref.RefID == "" {
			return types.Location{}, ErrBadRequest
		}
		a, err := s.store.Get(ctx, ref.RefID)
		if err != nil {
			return types.Location{}, err
		}
		if a.UserID != userID {
			return types.Location{}, ErrForbidden
		}
		_ = s.store.TouchLastUsed(ctx, a.ID, s.clock())
		return a.Location, nil

	case RefCurated:
		if ref.RefID == "" {
			return types.Location{}, ErrBadRequest
		}
		d, err := s.store.GetQuickDestination(ctx, ref.RefID)
		if err != nil {
			return types.Location{}, err
		}
		if userID != "" {
			_ = s.store.TouchFavorite(ctx, userID, d.ID, s.clock())
		}
		return d.Location, nil

	case RefManual:
		if !ref.Manual.Valid() {
			return types.Location{}, ErrInvalidLocation
		}
		return ref.Manual, nil

	default:
		return types.Location{}, ErrBadRequest
	}
}
