// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool with
// startup retry, goose schema migrations from an embedded filesystem, a
// health-probe closure, and helpers for classifying common pgx errors.
//
// # Usage
//
//	var cfg pg.Config
//	// populate cfg via pkg/config
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, ".", slog.Default()); err != nil {
//		return err
//	}
//
// The helpers are deliberately decoupled so callers can wire them into any
// lifecycle framework.
package pg
