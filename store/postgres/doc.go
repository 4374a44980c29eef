// Package postgres implements store.Store on PostgreSQL using pgx/v5.
//
// Concurrency relies on row-level locking: ClaimDueRetries claims due
// retry rows with SELECT FOR UPDATE SKIP LOCKED, so any number of relay
// processes can sweep the same ledger without double-claiming. Schema
// migrations are embedded SQL files applied in filename order and
// tracked in hookrelay_migrations.
//
//	s, err := postgres.New(ctx, "postgres://localhost:5432/hookrelay")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
package postgres
