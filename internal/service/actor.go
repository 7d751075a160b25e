// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import "context"

// Actor identifies who triggered a change, for the audit log.
type Actor struct {
	UserID   int64
	Email    string
	APIKeyID int64
	IP       string
}

type actorKey struct{}

// WithActor attaches a to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored in ctx, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

func (a Actor) metadata() map[string]any {
	m := map[string]any{}
	if a.UserID != 0 {
		m["user_id"] = a.UserID
	}
	if a.Email != "" {
		m["user_email"] = a.Email
	}
	if a.APIKeyID != 0 {
		m["api_key_id"] = a.APIKeyID
	}
	return m
}
