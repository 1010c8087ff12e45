package bank

import (
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/pkg/errors"
)

func (b *Bank) resolve(from, to string, rateType entities.RateType) (float64, error) {
	if from == to {
		return 1, nil
	}

	if rateType != "" && rateType != entities.Mid {
		rate, ok := b.store.GetRate(from, rateType.Key(to))
		if !ok {
			return 0, &entities.NoRateError{From: from, To: to, Type: rateType}
		}
		return rate, nil
	}

	rate, ok, err := b.edge(from, to)
	if err != nil {
		return 0, err
	}
	if ok {
		return rate, nil
	}

	return b.triangulate(from, to)
}

// edge returns the direct rate or the inverted opposite one. An inverted rate
// is stored as a direct edge so the next lookup skips the division.
func (b *Bank) edge(from, to string) (float64, bool, error) {
	if from == to {
		return 1, true, nil
	}

	if rate, ok := b.store.GetRate(from, to); ok {
		return rate, true, nil
	}

	inverse, ok := b.store.GetRate(to, from)
	if !ok {
		return 0, false, nil
	}
	if inverse == 0 {
		return 0, false, errors.Wrapf(entities.ErrZeroRate, "invert %s -> %s", to, from)
	}

	rate := 1 / inverse
	b.store.SetRate(from, to, rate)

	return rate, true, nil
}

func (b *Bank) triangulate(from, to string) (float64, error) {
	source := b.sourceCode
	if from == source || to == source {
		return 0, &entities.NoRateError{From: from, To: to, Type: entities.Mid}
	}

	fromRate, ok, err := b.edge(source, from)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &entities.NoRateError{From: from, To: to, Type: entities.Mid}
	}

	toRate, ok, err := b.edge(source, to)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &entities.NoRateError{From: from, To: to, Type: entities.Mid}
	}

	if fromRate == 0 {
		return 0, errors.Wrapf(entities.ErrZeroRate, "triangulate %s -> %s via %s", from, to, source)
	}

	rate := toRate / fromRate
	b.store.SetRate(from, to, rate)

	return rate, nil
}
