package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"studioline/internal/config"
	"studioline/internal/db"
	"studioline/internal/engine"
	"studioline/internal/engine/identity"
	"studioline/internal/migrate"
	"studioline/internal/repo"
	"studioline/internal/token"
)

// Context bundles the wired services for a workspace. The CLI and server
// both bootstrap through here.
type Context struct {
	DB       *sql.DB
	Config   *config.Config
	Engine   engine.Engine
	Identity identity.Service
	Tokens   token.Service
}

// Open opens the workspace database, applies migrations, loads config and
// wires the services. jwtSecret may be empty for CLI commands that never
// touch tokens.
func Open(ctx context.Context, workspace, jwtSecret string) (*Context, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	r := repo.Repo{DB: conn}
	appCtx := &Context{
		DB:       conn,
		Config:   cfg,
		Engine:   engine.New(conn, cfg),
		Identity: identity.New(r, cfg.Auth.BcryptCost),
		Tokens:   token.New(jwtSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour),
	}
	if err := appCtx.ensureAdmin(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return appCtx, nil
}

func (c *Context) Close() error {
	return c.DB.Close()
}

// ensureAdmin seeds the first admin account from the environment when the
// staff store is empty. Every later staff account is provisioned by an
// admin through the API or CLI.
func (c *Context) ensureAdmin(ctx context.Context) error {
	n, err := c.Engine.Repo.CountStaff(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	phone := os.Getenv("STUDIOLINE_ADMIN_PHONE")
	password := os.Getenv("STUDIOLINE_ADMIN_PASSWORD")
	if phone == "" || password == "" {
		return nil
	}
	name := os.Getenv("STUDIOLINE_ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	_, err = c.Identity.CreateStaff(ctx, identity.CreateStaffOptions{
		Name:        name,
		PhoneNumber: phone,
		Password:    password,
		Role:        "admin",
	})
	return err
}
