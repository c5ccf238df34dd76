package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_points_schema.sql
var createPointsSchemaSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createPointsSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS
				classroom_members, classrooms, rewards, awarded_badges, badges,
				progress, submissions, questions, quizzes, lesson_ratings,
				lessons, bookings, ledger_entries, accounts`)
			return err
		},
	)
}
