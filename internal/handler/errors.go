package handler

import "errors"

var errNoControlAddress = errors.New("control API address is not configured")
