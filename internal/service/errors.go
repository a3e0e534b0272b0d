package service

import "errors"

var (
	ErrInvalidDataProvided = errors.New("invalid data provided")

	ErrTokenIsExpired          = errors.New("token is expired")
	ErrTokenIsExpiredOrInvalid = errors.New("token is expired or invalid")

	ErrCacheMiss = errors.New("no fresh cached value")
	ErrOffline   = errors.New("client is offline")
	ErrNoUserID  = errors.New("no user ID was given")
	ErrNoKey     = errors.New("object has no key")

	ErrNotPending      = errors.New("row is not pending upload")
	ErrNotDeadLetter   = errors.New("row is not a dead letter")
	ErrRowChanged      = errors.New("row changed since it was read")
	ErrRemoteNotFound  = errors.New("object not found on server")
	ErrUnknownMessage  = errors.New("unknown sync message")
	ErrSyncAborted     = errors.New("sync pass aborted")
	ErrUnroutableStore = errors.New("store has no upload route")
)
