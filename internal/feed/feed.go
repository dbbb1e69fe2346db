// Package feed доставляет уведомления о записанных событиях аукциона.
// Транзакция действия вызывает pg_notify на канале Channel; уведомление
// приходит только после коммита, поэтому подписчики видят лишь
// зафиксированные события.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const Channel = "auction_events"

const (
	defaultMinReconnect = 10 * time.Second
	defaultMaxReconnect = time.Minute
	defaultBuffer       = 64
	pingInterval        = 90 * time.Second
)

// Notification: полезная нагрузка pg_notify
type Notification struct {
	EventID   uuid.UUID `json:"event_id"`
	AuctionID uuid.UUID `json:"auction_id"`
	Type      string    `json:"type"`
}

// Parse разбирает полезную нагрузку уведомления
func Parse(payload string) (Notification, error) {
	var n Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if n.AuctionID == uuid.Nil {
		return Notification{}, fmt.Errorf("notification without auction_id")
	}
	return n, nil
}

type Options struct {
	MinReconnect time.Duration
	MaxReconnect time.Duration
	// Buffer: ёмкость канала подписки; при переполнении уведомление отбрасывается
	Buffer int
	Logger *slog.Logger
}

type Feed struct {
	listener *pq.Listener
	log      *slog.Logger
	buffer   int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Open подключается к Postgres и подписывается на Channel.
// Закрывать через Close.
func Open(conn string, opts Options) (*Feed, error) {
	if opts.MinReconnect <= 0 {
		opts.MinReconnect = defaultMinReconnect
	}
	if opts.MaxReconnect <= 0 {
		opts.MaxReconnect = defaultMaxReconnect
	}
	f := newFeed(opts)
	f.listener = pq.NewListener(conn, opts.MinReconnect, opts.MaxReconnect, f.onListenerEvent)
	if err := f.listener.Listen(Channel); err != nil {
		f.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}
	return f, nil
}

func newFeed(opts Options) *Feed {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Feed{
		log:    opts.Logger,
		buffer: opts.Buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

func (f *Feed) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.log.Info("feed connected", slog.String("channel", Channel))
	case pq.ListenerEventDisconnected:
		f.log.Warn("feed disconnected", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		f.log.Info("feed reconnected", slog.String("channel", Channel))
	case pq.ListenerEventConnectionAttemptFailed:
		f.log.Warn("feed connection attempt failed", slog.Any("error", err))
	}
}

// Run читает уведомления и раздаёт их подписчикам до отмены ctx или Close
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-f.listener.Notify:
			if !ok {
				return nil
			}
			// nil приходит после переподключения: часть уведомлений могла потеряться
			if n == nil {
				f.log.Warn("feed reconnected, notifications may have been missed")
				continue
			}
			f.dispatch(n.Extra)
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.log.Warn("feed ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (f *Feed) dispatch(payload string) {
	n, err := Parse(payload)
	if err != nil {
		f.log.Warn("skip malformed notification", slog.String("payload", payload), slog.Any("error", err))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		if sub.auctionID != uuid.Nil && sub.auctionID != n.AuctionID {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			f.log.Warn("subscriber is slow, notification dropped",
				slog.String("auction_id", n.AuctionID.String()),
				slog.String("event_id", n.EventID.String()))
		}
	}
}

// Subscribe подписывает на уведомления одного аукциона, uuid.Nil означает все аукционы
func (f *Feed) Subscribe(auctionID uuid.UUID) *Subscription {
	sub := &Subscription{
		feed:      f,
		auctionID: auctionID,
		ch:        make(chan Notification, f.buffer),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.ch)
		return sub
	}
	f.subs[sub] = struct{}{}
	return sub
}

// Close закрывает соединение и все подписки
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for sub := range f.subs {
		delete(f.subs, sub)
		close(sub.ch)
	}
	f.mu.Unlock()

	if f.listener == nil {
		return nil
	}
	return f.listener.Close()
}

type Subscription struct {
	feed      *Feed
	auctionID uuid.UUID
	ch        chan Notification
}

func (s *Subscription) C() <-chan Notification {
	return s.ch
}

func (s *Subscription) Close() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if _, ok := s.feed.subs[s]; !ok {
		return
	}
	delete(s.feed.subs, s)
	close(s.ch)
}
