// Package app composes the batch and reward ledger into a running
// application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── actor/          # Participants and roles
//	│   ├── submission/     # Waste submissions and verification state
//	│   ├── batch/          # Producer batches and their status ordering
//	│   └── token/          # Reward-ledger transactions
//	├── reward/             # Material-to-token reward policy
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces
//	│   ├── memory/         # In-memory implementation for tests
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic (actors, submission, batch,
//	│                       # token, reconcile)
//	├── httpapi/            # HTTP handlers and the audit trail
//	├── system/             # Service lifecycle management
//	├── runtime/            # Config-driven assembly and the HTTP server
//	└── metrics/            # Prometheus collectors
//
// Domain models carry no behavior beyond validation helpers; invariants that
// need atomicity (single verification winner, write-once references) live in
// the stores, and the services coordinate stores with the settlement gateway.
package app
