// Package rules содержит чистые денежные правила аукциона: шаг ставки и резерв кошелька.
// Консоль, сервер и оверлеи должны считать одинаково, поэтому логика живёт только здесь.
package rules

import (
	"sort"

	"draftauction/models"

	"github.com/shopspring/decimal"
)

// DefaultIncrement используется, когда у аукциона нет ни одного правила
var DefaultIncrement = decimal.NewFromInt(1)

// Step возвращает шаг ставки для текущей цены.
// Берётся первое правило (по возрастанию порога), у которого current <= threshold.
// Если цена выше всех порогов, берётся шаг последнего правила.
func Step(current decimal.Decimal, incrementRules []models.IncrementRule) decimal.Decimal {
	if len(incrementRules) == 0 {
		return DefaultIncrement
	}
	sorted := sortedRules(incrementRules)
	for _, r := range sorted {
		if current.LessThanOrEqual(r.Threshold) {
			return r.Increment
		}
	}
	return sorted[len(sorted)-1].Increment
}

// NextRequiredBid вычисляет следующую допустимую ставку.
// Без предыдущей ставки (current == nil) первая ставка равна базовой цене.
func NextRequiredBid(current *decimal.Decimal, base decimal.Decimal, incrementRules []models.IncrementRule) decimal.Decimal {
	if current == nil {
		return base
	}
	return current.Add(Step(*current, incrementRules))
}

func sortedRules(incrementRules []models.IncrementRule) []models.IncrementRule {
	sorted := make([]models.IncrementRule, len(incrementRules))
	copy(sorted, incrementRules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.LessThan(sorted[j].Threshold)
	})
	return sorted
}
