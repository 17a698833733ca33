// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

// Package services adapts Affinity components to suture.Service.
//
// Each adapter turns a component lifecycle (blocking ListenAndServe, a
// periodic maintenance call) into Serve(ctx) that returns when ctx is
// cancelled, and implements fmt.Stringer so suture can name it in logs.
package services
