package domain

import "strings"

// ListingKey addresses one asset: the collection it belongs to and its token id.
type ListingKey struct {
	Collection string
	TokenID    string
}

func NewListingKey(collection, tokenID string) ListingKey {
	return ListingKey{
		Collection: strings.ToLower(strings.TrimSpace(collection)),
		TokenID:    strings.TrimSpace(tokenID),
	}
}

func (k ListingKey) String() string {
	return k.Collection + "/" + k.TokenID
}

// MaxKeyPartLen bounds each half of a ListingKey.
const MaxKeyPartLen = 128

func (k ListingKey) Valid() bool {
	return k.Collection != "" && k.TokenID != "" &&
		len(k.Collection) <= MaxKeyPartLen && len(k.TokenID) <= MaxKeyPartLen
}

// Listing is an active offer to sell one asset at Price.
// A removed listing is represented by the zero value.
type Listing struct {
	Key    ListingKey
	Seller Account
	Price  Amount
}

func (l Listing) IsZero() bool {
	return l.Seller.IsZero() && l.Price.IsZero()
}
