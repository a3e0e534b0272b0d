// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package app contains shared application-layer constants used across the
// Spirit Connect client: messages the backend puts into error responses and
// messages the local control API writes into its own.
//
// Keeping them in one place ensures the client recognises the backend's
// wording and answers its own callers consistently.
package app

// Messages received from the backend.
const (
	// MsgInvalidDataProvided is returned when the request body cannot be
	// decoded or fails basic validation (e.g. missing required fields).
	MsgInvalidDataProvided = "invalid data provided"

	// MsgTokenIsExpired is returned when a JWT bearer token is syntactically
	// valid but its expiry time has passed.
	MsgTokenIsExpired = "token is expired"

	// MsgTokenIsExpiredOrInvalid is returned when a JWT bearer token is
	// either expired or cannot be verified (e.g. wrong signature).
	MsgTokenIsExpiredOrInvalid = "token is expired or invalid"
)

// Messages written by the control API.
const (
	// MsgInternalServerError is returned when an unexpected failure occurs
	// that the caller cannot resolve.
	MsgInternalServerError = "internal server error"

	// MsgOffline is returned when an operation needs the backend while the
	// client is offline.
	MsgOffline = "client is offline"

	// MsgUnknownSyncMessage is returned when a sync request names a message
	// type the coordinator does not handle.
	MsgUnknownSyncMessage = "unknown sync message type"

	// MsgInvalidConnectivity is returned when a connectivity request has no
	// "online" field.
	MsgInvalidConnectivity = "online flag is required"

	// MsgSessionExpired is returned when a sync pass was aborted because the
	// session token expired.
	MsgSessionExpired = "session expired, sign in again"
)
