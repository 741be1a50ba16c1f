package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_sittings.sql
var createSittingsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execSplit(ctx, db, createSittingsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execSplit(ctx, db, `DROP TABLE IF EXISTS progress --bun:split DROP TABLE IF EXISTS sittings`)
		},
	)
}
