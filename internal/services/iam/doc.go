// Package iam resolves who is calling and what they may do.
//
// Authentication runs the configured session sources in order:
//
//	Request → AuthenticateRequest → custom | database | provider → Principal
//
// The first source that authenticates wins. A source that rejects its
// credentials is logged and counted, then the next source is tried, so a stale
// cookie never hides a valid bearer token. Resolution never writes, apart from
// the database source refreshing last_used_at in the background.
//
// Authorization derives an auth.AdminView from the principal with
// auth.EvaluateAdmin and checks each granted capability against the static
// casbin policy. The enforcer is never mutated at request time.
//
// The service also owns the session lifecycle (local login, provider login
// provisioning, logout, session listing and invalidation) and profile role
// maintenance.
package iam
