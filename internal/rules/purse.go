package rules

import (
	"draftauction/models"

	"github.com/shopspring/decimal"
)

// Standing: состояние кошелька и состава команды
type Standing struct {
	PurseTotal decimal.Decimal
	Spent      decimal.Decimal
	MaxPlayers int
	Bought     int
}

// StandingOf строит Standing из строки команды с вычисленными тратами
func StandingOf(ts models.TeamStanding) Standing {
	return Standing{
		PurseTotal: ts.PurseTotal,
		Spent:      ts.Spent,
		MaxPlayers: ts.MaxPlayers,
		Bought:     ts.Bought,
	}
}

func (s Standing) Remaining() decimal.Decimal {
	return s.PurseTotal.Sub(s.Spent)
}

func (s Standing) SlotsLeft() int {
	if s.Bought >= s.MaxPlayers {
		return 0
	}
	return s.MaxPlayers - s.Bought
}

// MaxBid: максимальная ставка, при которой на каждый оставшийся слот
// остаётся хотя бы базовая цена. Без свободных слотов равна нулю.
func MaxBid(s Standing, basePrice decimal.Decimal) decimal.Decimal {
	slots := s.SlotsLeft()
	if slots == 0 {
		return decimal.Zero
	}
	reserve := basePrice.Mul(decimal.NewFromInt(int64(slots - 1)))
	return s.Remaining().Sub(reserve)
}

// CanAfford проверяет, может ли команда сделать ставку bid
func CanAfford(s Standing, basePrice, bid decimal.Decimal) bool {
	if s.SlotsLeft() == 0 {
		return false
	}
	return bid.LessThanOrEqual(MaxBid(s, basePrice))
}
