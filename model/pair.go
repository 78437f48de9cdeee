package model

import (
	"fmt"
)

// CandidatePair is a lost/found pair considered for matching. It is never
// persisted on its own.
type CandidatePair struct {
	Lost  *Post
	Found *Post
}

// NewCandidatePair orders a and b so that the lost post comes first.
// Pairs of the same or an unknown kind, of the same owner or of the same post
// are rejected.
func NewCandidatePair(a, b *Post) (*CandidatePair, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: nil post", ErrInvalidPair)
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("%w: post %d paired with itself", ErrInvalidPair, a.ID)
	}
	if !a.Kind.Valid() || !b.Kind.Valid() {
		return nil, fmt.Errorf("%w: posts %d and %d have kinds %q and %q", ErrInvalidPair, a.ID, b.ID, a.Kind, b.Kind)
	}
	if b.Kind != a.Kind.Opposite() {
		return nil, fmt.Errorf("%w: posts %d and %d are both %s", ErrInvalidPair, a.ID, b.ID, a.Kind)
	}
	if a.OwnerAccountID == b.OwnerAccountID {
		return nil, fmt.Errorf("%w: posts %d and %d have the same owner", ErrInvalidPair, a.ID, b.ID)
	}

	if a.Kind == PostKindLost {
		return &CandidatePair{Lost: a, Found: b}, nil
	}
	return &CandidatePair{Lost: b, Found: a}, nil
}

// HasImages reports whether both posts carry at least one image.
func (c *CandidatePair) HasImages() bool {
	return c.Lost.HasImages() && c.Found.HasImages()
}

// Key returns the order-independent key of the pair.
func (c *CandidatePair) Key() string {
	return PairKey(c.Lost.ID, c.Found.ID)
}

// PairKey returns a key that is the same for (a, b) and (b, a).
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
