package store

import (
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"

	"github.com/shopspring/decimal"
)

// significantDeltaPct is the threshold (percent, exclusive) above which a
// push update publishes a PriceChange to subscribers.
var significantDeltaPct = decimal.NewFromInt(1)

// Store is the single source of truth for entity scalar state and bounded
// history. It arbitrates between two independent update sources: bulk
// fetches overwrite scalars, push updates mutate price and append history.
//
// The mutex serializes all mutations, so updates to the same id apply in
// arrival order and history append+trim is atomic. Entities are never
// deleted for the life of the session.
type Store struct {
	mu      sync.RWMutex
	cryptos map[string]*domain.CryptoRecord
	weather map[string]*domain.WeatherRecord

	connected bool

	subs    map[int]subscription
	nextSub int

	now func() time.Time
}

type subscription struct {
	ids map[string]struct{} // empty = all ids
	fn  func(event.PriceChange)
}

// New creates an empty store. One instance per session; no hidden globals.
func New() *Store {
	return &Store{
		cryptos: make(map[string]*domain.CryptoRecord),
		weather: make(map[string]*domain.WeatherRecord),
		subs:    make(map[int]subscription),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SubscribeChanges registers interest in significant price changes for the
// given ids (nil or empty = all). Returns an unsubscribe func.
func (s *Store) SubscribeChanges(ids []string, fn func(event.PriceChange)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := subscription{fn: fn}
	if len(ids) > 0 {
		sub.ids = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			sub.ids[id] = struct{}{}
		}
	}

	key := s.nextSub
	s.nextSub++
	s.subs[key] = sub

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, key)
	}
}

// MergeCrypto applies a bulk fetch result. Absent entities are created with
// empty history; existing entities get their scalar fields overwritten and
// keep their history. Ids missing from the call are left untouched, so a
// partially failed upstream response never loses local state.
func (s *Store) MergeCrypto(entries map[string]domain.CryptoRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, in := range entries {
		rec, ok := s.cryptos[id]
		if !ok {
			created := in
			created.ID = id
			created.History = nil
			s.cryptos[id] = &created
			continue
		}
		rec.Symbol = in.Symbol
		rec.Name = in.Name
		rec.Price = in.Price
		rec.PriceChange24h = in.PriceChange24h
		rec.MarketCap = in.MarketCap
		rec.Volume = in.Volume
		rec.CirculatingSupply = in.CirculatingSupply
	}
}

// MergeWeather applies a bulk weather fetch with the same semantics as
// MergeCrypto: scalar overwrite, history untouched, absent keys ignored.
func (s *Store) MergeWeather(entries map[string]domain.WeatherRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for city, in := range entries {
		rec, ok := s.weather[city]
		if !ok {
			created := in
			created.City = city
			created.History = nil
			s.weather[city] = &created
			continue
		}
		rec.Temperature = in.Temperature
		rec.Humidity = in.Humidity
		rec.Conditions = in.Conditions
	}
}

// ApplyPush merges a streaming price update. Unknown ids are a silent
// no-op: the push simply arrived before any bulk fetch established the
// entity. Otherwise the price is updated, a history point appended
// (bounded FIFO), and a significant delta is published to subscribers.
func (s *Store) ApplyPush(id string, price decimal.Decimal) {
	s.mu.Lock()

	rec, ok := s.cryptos[id]
	if !ok {
		s.mu.Unlock()
		return
	}

	old := rec.Price
	rec.Price = price

	rec.History = append(rec.History, domain.PricePoint{
		TimestampUnixMs: s.now().UnixMilli(),
		Price:           price,
	})
	if n := len(rec.History); n > domain.CryptoHistoryCap {
		rec.History = rec.History[n-domain.CryptoHistoryCap:]
	}

	// A zero old price makes the delta undefined; update state but never
	// signal a change computed by dividing by zero.
	if old.IsZero() {
		s.mu.Unlock()
		return
	}

	deltaPct := price.Sub(old).Div(old).Mul(decimal.NewFromInt(100))
	if deltaPct.Abs().LessThanOrEqual(significantDeltaPct) {
		s.mu.Unlock()
		return
	}

	direction := "increased"
	if deltaPct.IsNegative() {
		direction = "decreased"
	}

	ev := event.PriceChange{
		ID:        id,
		Name:      rec.DisplayName(),
		OldPrice:  old,
		NewPrice:  price,
		DeltaPct:  deltaPct,
		Direction: direction,
	}

	fns := s.matchSubs(id)
	s.mu.Unlock()

	// Callbacks run outside the lock; the single push-reader goroutine
	// still guarantees per-id delivery order.
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Store) matchSubs(id string) []func(event.PriceChange) {
	var fns []func(event.PriceChange)
	for _, sub := range s.subs {
		if sub.ids != nil {
			if _, ok := sub.ids[id]; !ok {
				continue
			}
		}
		fns = append(fns, sub.fn)
	}
	return fns
}

// RecordWeatherSample appends the city's current temperature/humidity to
// its bounded history. No-op for unknown cities.
func (s *Store) RecordWeatherSample(city string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.weather[city]
	if !ok {
		return
	}

	rec.History = append(rec.History, domain.WeatherSample{
		TimestampUnixMs: s.now().UnixMilli(),
		Temperature:     rec.Temperature,
		Humidity:        rec.Humidity,
	})
	if n := len(rec.History); n > domain.WeatherHistoryCap {
		rec.History = rec.History[n-domain.WeatherHistoryCap:]
	}
}

// SetConnected records live-feed connectivity.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// Connected reports live-feed connectivity.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Crypto returns a copy of the asset record.
func (s *Store) Crypto(id string) (domain.CryptoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.cryptos[id]
	if !ok {
		return domain.CryptoRecord{}, false
	}
	return copyCrypto(rec), true
}

// Weather returns a copy of the city record.
func (s *Store) Weather(city string) (domain.WeatherRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.weather[city]
	if !ok {
		return domain.WeatherRecord{}, false
	}
	return copyWeather(rec), true
}

// CryptoSnapshot returns copies of all asset records.
func (s *Store) CryptoSnapshot() map[string]domain.CryptoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.CryptoRecord, len(s.cryptos))
	for id, rec := range s.cryptos {
		out[id] = copyCrypto(rec)
	}
	return out
}

// WeatherSnapshot returns copies of all city records.
func (s *Store) WeatherSnapshot() map[string]domain.WeatherRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.WeatherRecord, len(s.weather))
	for city, rec := range s.weather {
		out[city] = copyWeather(rec)
	}
	return out
}

func copyCrypto(rec *domain.CryptoRecord) domain.CryptoRecord {
	out := *rec
	out.History = append([]domain.PricePoint(nil), rec.History...)
	return out
}

func copyWeather(rec *domain.WeatherRecord) domain.WeatherRecord {
	out := *rec
	out.History = append([]domain.WeatherSample(nil), rec.History...)
	return out
}
