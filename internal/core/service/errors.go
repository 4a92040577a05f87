package service

import "errors"

var (
	ErrInvalidPrice              = errors.New("price must be above zero")
	ErrAlreadyListed             = errors.New("already listed")
	ErrNotOwner                  = errors.New("not owner")
	ErrNotApprovedForMarketplace = errors.New("not approved for marketplace")
	ErrNotListed                 = errors.New("not listed")
	ErrPriceNotMet               = errors.New("price not met")
	ErrNoProceeds                = errors.New("no proceeds")
	ErrTransferFailed            = errors.New("transfer failed")
	ErrDuplicateRequest          = errors.New("duplicate request")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrInvalidPrice, "InvalidPrice"},
	{ErrAlreadyListed, "AlreadyListed"},
	{ErrNotOwner, "NotOwner"},
	{ErrNotApprovedForMarketplace, "NotApprovedForMarketplace"},
	{ErrNotListed, "NotListed"},
	{ErrPriceNotMet, "PriceNotMet"},
	{ErrNoProceeds, "NoProceeds"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrDuplicateRequest, "DuplicateRequest"},
}

// Code returns the stable name of the marketplace error wrapped in err,
// "Internal" for any other error and "" for nil.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
