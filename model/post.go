package model

import (
	"time"
)

// PostKind discriminates lost and found posts.
type PostKind string

const (
	PostKindLost  PostKind = "lost"
	PostKindFound PostKind = "found"
)

// Valid reports whether k is a known post kind.
func (k PostKind) Valid() bool {
	return k == PostKindLost || k == PostKindFound
}

// Opposite returns the kind a post of kind k can be matched against.
func (k PostKind) Opposite() PostKind {
	if k == PostKindLost {
		return PostKindFound
	}
	return PostKindLost
}

// PostStatus is the moderation state of a post.
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
	PostStatusResolved PostStatus = "resolved"
)

// Post is a lost or found listing. Both kinds share the same fields.
type Post struct {
	ID             int64      `json:"id"`
	Kind           PostKind   `json:"kind"`
	Title          string     `json:"title"`
	ItemName       string     `json:"item_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	Category       string     `json:"category,omitempty"`
	OwnerAccountID int64      `json:"owner_account_id"`
	Status         PostStatus `json:"status"`
	ImageURLs      []string   `json:"image_urls"`
	CreatedAt      time.Time  `json:"created_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsApproved reports whether the post takes part in matching.
func (p *Post) IsApproved() bool {
	return p.Status == PostStatusApproved
}

// HasImages reports whether the post carries at least one image URL.
func (p *Post) HasImages() bool {
	return len(p.ImageURLs) > 0
}

// LastActivity returns the later of CreatedAt and ApprovedAt.
func (p *Post) LastActivity() time.Time {
	if p.ApprovedAt != nil && p.ApprovedAt.After(p.CreatedAt) {
		return *p.ApprovedAt
	}
	return p.CreatedAt
}

// IsRecent reports whether the post's last activity lies within window before now.
func (p *Post) IsRecent(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastActivity()) <= window
}
