package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/hoa-reimbursement/internal/auth"
	coreUser "github.com/frahmantamala/hoa-reimbursement/internal/core/user"
	"github.com/frahmantamala/hoa-reimbursement/pkg/ids"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

const seedPassword = "password"

type seedUser struct {
	ID           string   `db:"id"`
	Email        string   `db:"email"`
	Name         string   `db:"name"`
	PasswordHash string   `db:"password_hash"`
	Role         string   `db:"role"`
	HourlyRate   *float64 `db:"hourly_rate"`
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a treasurer, two members and the settings row for development and testing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies(configPath)
		if err != nil {
			return err
		}
		defer deps.Close()
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if clearData {
			if err := clearSeedData(ctx, deps.DB); err != nil {
				return err
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := auth.HashPassword(seedPassword, deps.Config.Security.BCryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash seed password: %w", err)
		}

		overrideRate := 30.0
		users := []seedUser{
			{Email: "treasurer@hoa.local", Name: "Terry Treasurer", Role: string(coreUser.RoleTreasurer)},
			{Email: "member@hoa.local", Name: "Morgan Member", Role: string(coreUser.RoleMember)},
			{Email: "gardener@hoa.local", Name: "Gale Gardener", Role: string(coreUser.RoleMember), HourlyRate: &overrideRate},
		}

		for _, u := range users {
			u.ID = ids.New()
			u.PasswordHash = hash
			res, err := deps.DB.NamedExecContext(ctx, `
				INSERT INTO users (id, email, name, password_hash, role, hourly_rate, is_active, created_at, updated_at)
				VALUES (:id, :email, :name, :password_hash, :role, :hourly_rate, true, now(), now())
				ON CONFLICT (email) DO NOTHING`, u)
			if err != nil {
				return fmt.Errorf("failed to insert user %s: %w", u.Email, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				fmt.Println("user already exists:", u.Email)
				continue
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		cfg, err := deps.Services.Settings.EnsureSeeded(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
		fmt.Printf("Settings ready: hourly rate %s, dual approval threshold %s\n",
			cfg.DefaultHourlyRate.StringFixed(2), cfg.DualApprovalThreshold.StringFixed(2))
		return nil
	},
}

func clearSeedData(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"nudges", "entries", "settings", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
