// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

/*
Package supervisor runs Affinity's long-lived components under a suture v4
supervisor tree.

Tree layout:

	affinity (root)
	├── data-layer
	│   └── badger-gc        periodic value log GC on the shared store
	└── api-layer
	    └── http-server      chi router

A failing service is restarted with suture's backoff policy; a crash in the
data layer does not stop the API from serving. Supervisor events are logged
through sutureslog, bridged to zerolog by logging.NewSlogLogger.

Service adapters live in the services subpackage.
*/
package supervisor
