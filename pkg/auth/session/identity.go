package session

// Identity is the per-request view of who is acting. It is a value: operations
// that change it return a new Identity which the HTTP layer persists.
type Identity struct {
	UserID     *int64  `json:"user_id,omitempty"`
	CartID     *int64  `json:"cart_id,omitempty"`
	GuestToken *string `json:"guest_token,omitempty"`
}

// IsAuthenticated reports whether a user is signed in.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != nil
}

// IsEmpty reports whether there is nothing worth persisting.
func (i Identity) IsEmpty() bool {
	return i.UserID == nil && i.CartID == nil && i.GuestToken == nil
}

func (i Identity) WithUser(userID int64) Identity {
	i.UserID = &userID
	return i
}

func (i Identity) WithoutUser() Identity {
	i.UserID = nil
	return i
}

func (i Identity) WithCart(cartID int64) Identity {
	i.CartID = &cartID
	return i
}

func (i Identity) WithoutCart() Identity {
	i.CartID = nil
	return i
}

func (i Identity) WithGuestToken(token string) Identity {
	i.GuestToken = &token
	return i
}

func (i Identity) WithoutGuestToken() Identity {
	i.GuestToken = nil
	return i
}

// Equal compares the pointed-to values.
func (i Identity) Equal(other Identity) bool {
	return equalInt64(i.UserID, other.UserID) &&
		equalInt64(i.CartID, other.CartID) &&
		equalString(i.GuestToken, other.GuestToken)
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
