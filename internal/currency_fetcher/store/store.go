// Package store keeps exchange-rate edges keyed by ordered currency pair.
//
// Store is not safe for concurrent use.
package store

import "github.com/langowen/oxrbank/internal/entities"

type pair struct {
	from string
	to   string
}

type Store struct {
	index map[pair]int
	rates []entities.Rate
}

func New() *Store {
	return &Store{index: make(map[pair]int)}
}

// SetRate overwrites the edge from -> to. A pair seen for the first time is
// appended to the iteration order; an overwrite keeps its position.
func (s *Store) SetRate(from, to string, rate float64) {
	key := pair{from: from, to: to}
	if i, ok := s.index[key]; ok {
		s.rates[i].Value = rate
		return
	}
	s.index[key] = len(s.rates)
	s.rates = append(s.rates, entities.Rate{From: from, To: to, Value: rate})
}

func (s *Store) GetRate(from, to string) (float64, bool) {
	i, ok := s.index[pair{from: from, to: to}]
	if !ok {
		return 0, false
	}
	return s.rates[i].Value, true
}

func (s *Store) Clear() {
	s.index = make(map[pair]int)
	s.rates = nil
}

func (s *Store) Len() int {
	return len(s.rates)
}

// Each calls fn for every edge in insertion order until fn returns false.
func (s *Store) Each(fn func(entities.Rate) bool) {
	for _, r := range s.rates {
		if !fn(r) {
			return
		}
	}
}

func (s *Store) Rates() []entities.Rate {
	out := make([]entities.Rate, len(s.rates))
	copy(out, s.rates)
	return out
}
