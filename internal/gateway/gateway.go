// Package gateway defines the remote persistence port consumed by the
// record store, plus typed helpers over its JSON wire shape.
//
// Implementations scope every call by the authenticated user and the
// application id they were built with; callers never see that scoping.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gigledger/internal/core"
)

var (
	// ErrNotFound is returned when the record does not exist in the caller's partition.
	ErrNotFound = errors.New("gateway: record not found")
	// ErrNotAuthenticated is returned when no identity is present.
	ErrNotAuthenticated = errors.New("gateway: not authenticated")
)

// Identity reports the authenticated user, if any.
type Identity interface {
	UserID(ctx context.Context) (string, bool)
}

// Anonymous never authenticates; the store runs in local-only mode.
type Anonymous struct{}

func (Anonymous) UserID(context.Context) (string, bool) { return "", false }

// Static is a fixed user id. The empty string is anonymous.
type Static string

func (s Static) UserID(context.Context) (string, bool) { return string(s), s != "" }

// Gateway is the remote CRUD surface. Records travel as JSON objects;
// the server assigns "id", "createdAt" and "updatedAt" on create.
type Gateway interface {
	FetchAll(ctx context.Context, c core.Collection) ([]json.RawMessage, error)
	Create(ctx context.Context, c core.Collection, record json.RawMessage) (json.RawMessage, error)
	// Update shallow-merges patch into the stored record.
	Update(ctx context.Context, c core.Collection, id string, patch json.RawMessage) (json.RawMessage, error)
	Remove(ctx context.Context, c core.Collection, id string) error
}

// FetchAll decodes every record of a collection into T.
func FetchAll[T any](ctx context.Context, g Gateway, c core.Collection) ([]T, error) {
	raws, err := g.FetchAll(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s record: %w", c, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Create sends record and decodes the server's version of it.
func Create[T any](ctx context.Context, g Gateway, c core.Collection, record T) (T, error) {
	var out T
	body, err := json.Marshal(record)
	if err != nil {
		return out, fmt.Errorf("encode %s record: %w", c, err)
	}
	raw, err := g.Create(ctx, c, body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s record: %w", c, err)
	}
	return out, nil
}

// Update sends patch (anything that encodes to a JSON object) and decodes
// the merged record.
func Update[T any](ctx context.Context, g Gateway, c core.Collection, id string, patch any) (T, error) {
	var out T
	body, err := json.Marshal(patch)
	if err != nil {
		return out, fmt.Errorf("encode %s patch: %w", c, err)
	}
	raw, err := g.Update(ctx, c, id, body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s record: %w", c, err)
	}
	return out, nil
}

// DecodeObject parses a JSON object into its top-level fields.
func DecodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}
	if fields == nil {
		return nil, errors.New("record is not a JSON object")
	}
	return fields, nil
}
