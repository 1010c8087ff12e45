// Package cache holds the last fetched raw rates document, either in a file or
// behind a pair of caller-supplied callbacks.
package cache

import (
	"context"
	"fmt"
	"github.com/google/renameio/v2"
	"github.com/langowen/oxrbank/internal/entities"
	"os"
)

// Location selects where the document lives. The only implementations are
// Path and Callback.
type Location interface {
	location()
}

// Path is a file on disk. The file survives process restarts.
type Path string

func (Path) location() {}

type ReadFunc func(ctx context.Context) (text string, ok bool, err error)

type WriteFunc func(ctx context.Context, text string) error

// Callback delegates storage to the caller, e.g. an external database.
type Callback struct {
	Read  ReadFunc
	Write WriteFunc
}

func (Callback) location() {}

type Channel struct {
	loc Location
}

// New validates loc. A nil loc or an empty Path yields a channel without a
// destination: reads report absence and writes fail with ErrInvalidCache.
func New(loc Location) (*Channel, error) {
	const op = "cache.New"

	switch l := loc.(type) {
	case nil:
		return &Channel{}, nil
	case Path:
		if l == "" {
			return &Channel{}, nil
		}
	case Callback:
		if l.Read == nil || l.Write == nil {
			return nil, fmt.Errorf("%s: callback needs both read and write: %w", op, entities.ErrInvalidCache)
		}
	case *Callback:
		if l == nil || l.Read == nil || l.Write == nil {
			return nil, fmt.Errorf("%s: callback needs both read and write: %w", op, entities.ErrInvalidCache)
		}
		loc = *l
	default:
		return nil, fmt.Errorf("%s: unsupported location %T: %w", op, loc, entities.ErrInvalidCache)
	}

	return &Channel{loc: loc}, nil
}

func (c *Channel) Configured() bool {
	return c != nil && c.loc != nil
}

func (c *Channel) Location() Location {
	if c == nil {
		return nil
	}
	return c.loc
}

// ReadCached returns the cached document. A missing or empty file is reported
// as absent, not as an error.
func (c *Channel) ReadCached(ctx context.Context) (string, bool, error) {
	const op = "cache.ReadCached"

	if !c.Configured() {
		return "", false, nil
	}

	switch l := c.loc.(type) {
	case Path:
		data, err := os.ReadFile(string(l))
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, nil
			}
			return "", false, fmt.Errorf("%s: %w: %w", op, entities.ErrInvalidCache, err)
		}
		if len(data) == 0 {
			return "", false, nil
		}
		return string(data), true, nil
	case Callback:
		text, ok, err := l.Read(ctx)
		if err != nil {
			return "", false, fmt.Errorf("%s: %w", op, err)
		}
		if !ok || text == "" {
			return "", false, nil
		}
		return text, true, nil
	}

	return "", false, nil
}

// WriteCache replaces the cached document with text. Files are replaced
// atomically, so a failed write leaves the previous contents intact.
func (c *Channel) WriteCache(ctx context.Context, text string) error {
	const op = "cache.WriteCache"

	if !c.Configured() {
		return fmt.Errorf("%s: no cache destination: %w", op, entities.ErrInvalidCache)
	}

	switch l := c.loc.(type) {
	case Path:
		if err := renameio.WriteFile(string(l), []byte(text), 0o644); err != nil {
			return fmt.Errorf("%s: %w: %w", op, entities.ErrInvalidCache, err)
		}
	case Callback:
		if err := l.Write(ctx, text); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

