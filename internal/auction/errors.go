package auction

// Error: ошибка валидации действия. Ответ 400 с полями error и details.
type Error struct {
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrAuctionNotFound    = &Error{Message: "auction not found"}
	ErrAuctionNotLive     = &Error{Message: "auction not live"}
	ErrAuctionNotPaused   = &Error{Message: "auction not paused"}
	ErrAuctionCompleted   = &Error{Message: "auction completed"}
	ErrTeamNotInAuction   = &Error{Message: "team not in auction"}
	ErrPlayerNotFound     = &Error{Message: "player not found"}
	ErrNoPlayerLoaded     = &Error{Message: "no player loaded"}
	ErrNoEligiblePlayer   = &Error{Message: "no eligible player in scope"}
	ErrSetNotSelected     = &Error{Message: "set not selected"}
	ErrPlayerNotAvailable = &Error{Message: "player not available"}
	ErrPlayerAlreadySold  = &Error{Message: "player already sold"}
	ErrNoBidsToSell       = &Error{Message: "no bids to sell"}
	ErrNoBidsToUndo       = &Error{Message: "no bids to undo"}
	ErrNoSaleToUndo       = &Error{Message: "no sale to undo"}
	ErrNotUnsold          = &Error{Message: "not unsold"}
	ErrRosterFull         = &Error{Message: "team roster full"}
)

const (
	msgInvalidAmount     = "invalid bid amount"
	msgInsufficientPurse = "insufficient purse"
)

func invalid(msg string, details map[string]any) *Error {
	return &Error{Message: msg, Details: details}
}
