package favorites

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"
)

// ledgerKey is the single durable-storage key holding the whole ledger.
const ledgerKey = "favorites"

// Storage is the durable KV surface the ledger persists to.
// storage.MetaStore satisfies it.
type Storage interface {
	Put(ctx context.Context, key, value string, ts int64) error
	Get(ctx context.Context, key string) (string, error)
}

type ledgerState struct {
	Cities  []string `json:"cities"`
	Cryptos []string `json:"cryptos"`
}

// Ledger is the persisted set of favorited ids: two independent ordered
// sets, written through to storage on every mutation. It is independent of
// entity lifecycle; a favorited id may reference an entity never fetched.
type Ledger struct {
	mu       sync.Mutex
	state    ledgerState
	storage  Storage
	notifier event.Notifier
}

// Load builds a ledger from storage. Any storage or parse failure logs and
// falls back to empty sets; it never fails the caller.
func Load(ctx context.Context, storage Storage, notifier event.Notifier) *Ledger {
	l := &Ledger{storage: storage, notifier: notifier}

	if storage == nil {
		return l
	}

	raw, err := storage.Get(ctx, ledgerKey)
	if err != nil {
		slog.Warn("failed to load favorites, starting empty", "err", err)
		return l
	}
	if raw == "" {
		return l
	}

	var state ledgerState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		slog.Warn("corrupt favorites payload, starting empty", "err", err)
		return l
	}

	l.state = state
	return l
}

// Toggle flips membership of id in the set for kind and persists the whole
// ledger synchronously. Returns true if the id was added.
func (l *Ledger) Toggle(ctx context.Context, kind domain.FavoriteKind, id string) bool {
	l.mu.Lock()

	var set *[]string
	switch kind {
	case domain.FavoriteCity:
		set = &l.state.Cities
	default:
		set = &l.state.Cryptos
	}

	added := true
	idx := indexOf(*set, id)
	if idx == -1 {
		*set = append(*set, id)
	} else {
		*set = append((*set)[:idx], (*set)[idx+1:]...)
		added = false
	}

	l.persistLocked(ctx)
	l.mu.Unlock()

	verb := "Added"
	preposition := "to"
	if !added {
		verb = "Removed"
		preposition = "from"
	}
	l.notify(fmt.Sprintf("%s %s %s favorites", verb, id, preposition))

	return added
}

// IsFavorite reports membership without mutating.
func (l *Ledger) IsFavorite(kind domain.FavoriteKind, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if kind == domain.FavoriteCity {
		return indexOf(l.state.Cities, id) != -1
	}
	return indexOf(l.state.Cryptos, id) != -1
}

// Cities returns a copy of the favorited city ids.
func (l *Ledger) Cities() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.state.Cities...)
}

// Cryptos returns a copy of the favorited crypto ids.
func (l *Ledger) Cryptos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.state.Cryptos...)
}

func (l *Ledger) persistLocked(ctx context.Context) {
	if l.storage == nil {
		return
	}
	data, err := json.Marshal(l.state)
	if err != nil {
		slog.Error("failed to marshal favorites", "err", err)
		return
	}
	if err := l.storage.Put(ctx, ledgerKey, string(data), time.Now().UnixMicro()); err != nil {
		slog.Error("failed to persist favorites", "err", err)
	}
}

func (l *Ledger) notify(message string) {
	if l.notifier == nil {
		return
	}
	l.notifier.Notify(event.Notification{
		Type:    event.EvFavorites,
		Key:     "favorites",
		Message: message,
		TsUnixM: time.Now().UnixMicro(),
	})
}

func indexOf(set []string, id string) int {
	for i, v := range set {
		if v == id {
			return i
		}
	}
	return -1
}
