package types

import (
	"strings"
	"time"
)

// ItemKind tells whether a report describes something lost or something found.
type ItemKind string

const (
	ItemKindLost  ItemKind = "lost"
	ItemKindFound ItemKind = "found"
)

// ParseItemKind accepts the wire values case-insensitively ("LOST", "found", ...).
func ParseItemKind(raw string) (ItemKind, bool) {
	switch ItemKind(strings.ToLower(strings.TrimSpace(raw))) {
	case ItemKindLost:
		return ItemKindLost, true
	case ItemKindFound:
		return ItemKindFound, true
	default:
		return "", false
	}
}

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	ItemStatusActive   ItemStatus = "active"
	ItemStatusClaimed  ItemStatus = "claimed"
	ItemStatusReturned ItemStatus = "returned"
)

// ParseItemStatus accepts the wire values case-insensitively.
func ParseItemStatus(raw string) (ItemStatus, bool) {
	switch ItemStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case ItemStatusActive:
		return ItemStatusActive, true
	case ItemStatusClaimed:
		return ItemStatusClaimed, true
	case ItemStatusReturned:
		return ItemStatusReturned, true
	default:
		return "", false
	}
}

// Field bounds, in runes.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxLocationLength    = 200
)

// Item represents a lost-or-found report posted on the board.
//
// ClaimedBy and ClaimedAt are set if and only if Status is ItemStatusClaimed,
// and ClaimedBy never equals PostedBy. Once an item leaves ItemStatusActive
// it never returns to it.
type Item struct {
	// ID is the opaque identifier assigned at creation.
	ID string `json:"id" db:"id"`

	// Kind is LOST or FOUND, chosen by the poster.
	Kind ItemKind `json:"kind" db:"kind"`

	// Title is a short summary of the item.
	Title string `json:"title" db:"title"`

	// Description is the free-form body of the report.
	Description string `json:"description" db:"description"`

	// Location is where the item was lost or found.
	Location string `json:"location" db:"location"`

	// PostedBy is the ID of the user who created the report.
	PostedBy string `json:"posted_by" db:"posted_by"`

	// Status is the lifecycle state of the item.
	Status ItemStatus `json:"status" db:"status"`

	// ClaimedBy is the ID of the user who claimed the item, if any.
	ClaimedBy *string `json:"claimed_by,omitempty" db:"claimed_by"`

	// ClaimedAt is when the successful claim was committed, if any.
	ClaimedAt *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`

	// Images holds object storage keys of photos attached by the poster.
	Images []string `json:"images" db:"images"`

	// Version increases on every write and serves as the optimistic
	// concurrency token for stores without conditional updates.
	Version int64 `json:"version" db:"version"`

	// CreatedAt is set once, when the item is posted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent write.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsClaimedBy reports whether userID holds the claim on the item.
func (i Item) IsClaimedBy(userID string) bool {
	return i.ClaimedBy != nil && *i.ClaimedBy == userID
}

// ItemTransition describes the fields written by a conditional status update.
type ItemTransition struct {
	Status    ItemStatus
	ClaimedBy *string
	ClaimedAt *time.Time
}

// ItemOrder selects the createdAt ordering of a listing.
type ItemOrder string

const (
	ItemOrderNewest ItemOrder = "newest"
	ItemOrderOldest ItemOrder = "oldest"
)

// ItemFilter narrows a listing. Zero values mean "no constraint".
type ItemFilter struct {
	Kind     ItemKind
	Status   ItemStatus
	Query    string
	PostedBy string
	Order    ItemOrder
	Offset   int
	Limit    int
}
