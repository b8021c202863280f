package domain

// ConfirmationType classifies a pending mobile confirmation. Values come
// off the wire; anything unrecognised stays Unknown and is still actionable.
type ConfirmationType int

const (
	ConfirmationUnknown         ConfirmationType = 0
	ConfirmationGeneric         ConfirmationType = 1
	ConfirmationTrade           ConfirmationType = 2
	ConfirmationMarketListing   ConfirmationType = 3
	ConfirmationAccountRecovery ConfirmationType = 5
)

func (t ConfirmationType) String() string {
	switch t {
	case ConfirmationGeneric:
		return "Generic"
	case ConfirmationTrade:
		return "Trade"
	case ConfirmationMarketListing:
		return "Market Listing"
	case ConfirmationAccountRecovery:
		return "Account Recovery"
	default:
		return "Unknown"
	}
}

// Confirmation is one pending action awaiting approval or denial. ID and
// Nonce together identify it to the ajaxop endpoints; the remaining fields
// are display-only.
type Confirmation struct {
	ID       string
	Nonce    string
	Type     ConfirmationType
	TypeName string
	Creator  string
	Headline string
	Summary  []string
}
