// README: Saved common addresses and curated quick destinations.
package address

import (
	"time"

	"laoyou/internal/types"
)

// Tag classifies a saved address for quick filtering.
type Tag string

const (
	TagHome     Tag = "home"
	TagHospital Tag = "hospital"
	TagRelative Tag = "relative"
	TagShopping Tag = "shopping"
	TagOther    Tag = "other"
)

// ValidTag reports whether t is one of the known tags.
func ValidTag(t Tag) bool {
	switch t {
	case TagHome, TagHospital, TagRelative, TagShopping, TagOther:
		return true
	}
	return false
}

// CommonAddress is a user-owned named location ("my home", "the hospital").
// At most one address per user carries IsDefault.
type CommonAddress struct {
	ID          types.ID
	UserID      types.ID
	Location    types.Location
	DisplayName string
	Tag         Tag
	Priority    int // 1 highest, default 5
	IsDefault   bool

	// Elderly-friendly extras carried through to the driver.
	BuildingInfo string
	Note         string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastUsedAt time.Time
}

// QuickDestination is a shared curated location offered to every user
// (e.g. a major hospital). Users may favorite one, which tracks a
// per-user last-used timestamp.
type QuickDestination struct {
	ID       types.ID
	Name     string
	Location types.Location
}

// RefKind selects how an order endpoint is specified.
type RefKind string

const (
	RefSaved   RefKind = "saved"
	RefCurated RefKind = "curated"
	RefManual  RefKind = "manual"
)

// Ref is a location reference to be resolved into a canonical Location.
type Ref struct {
	Kind   RefKind
	RefID  types.ID       // saved/curated
	Manual types.Location // manual
}
