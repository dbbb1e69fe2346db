// Package queue выбирает следующего игрока для торгов по области очереди аукциона.
package queue

import (
	"context"
	"errors"

	"draftauction/models"

	"github.com/google/uuid"
)

var (
	// ErrInvalidScope: область "set", но сет не выбран
	ErrInvalidScope = errors.New("set not selected")
	// ErrEmpty: в области очереди нет подходящих игроков
	ErrEmpty = errors.New("no eligible player in scope")
)

// Filter описывает, каких игроков брать из очереди
type Filter struct {
	Status string
	SetID  *uuid.UUID
}

// Finder возвращает самого раннего по created_at игрока, подходящего под фильтр,
// или models.ErrNotFound.
type Finder interface {
	NextQueuedPlayer(ctx context.Context, auctionID uuid.UUID, f Filter) (*models.Player, error)
}

// Criteria переводит область очереди аукциона в фильтр
func Criteria(a *models.Auction) (Filter, error) {
	switch a.QueueScope {
	case models.ScopeUnsold:
		return Filter{Status: models.PlayerUnsold}, nil
	case models.ScopeSet:
		if a.CurrentSetID == nil {
			return Filter{}, ErrInvalidScope
		}
		setID := *a.CurrentSetID
		return Filter{Status: models.PlayerAvailable, SetID: &setID}, nil
	default:
		return Filter{Status: models.PlayerAvailable}, nil
	}
}

// SelectNext возвращает id следующего игрока. Явно переданный id имеет приоритет.
func SelectNext(ctx context.Context, finder Finder, a *models.Auction, explicit *uuid.UUID) (uuid.UUID, error) {
	if explicit != nil {
		return *explicit, nil
	}
	f, err := Criteria(a)
	if err != nil {
		return uuid.Nil, err
	}
	p, err := finder.NextQueuedPlayer(ctx, a.ID, f)
	if errors.Is(err, models.ErrNotFound) {
		return uuid.Nil, ErrEmpty
	}
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// Matches сообщает, подходит ли игрок под фильтр
func (f Filter) Matches(p *models.Player) bool {
	if p.Status != f.Status {
		return false
	}
	if f.SetID != nil && (p.SetID == nil || *p.SetID != *f.SetID) {
		return false
	}
	return true
}
