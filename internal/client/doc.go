// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the sync agent runtime.
//
// It wires the local store, the server adapter, the sync services, the
// background workers and the optional control API into a single process
// lifecycle that ends on a termination signal.
package client
