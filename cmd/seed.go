package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/modelboard/webapp/app/entity"
	"github.com/modelboard/webapp/app/repository"
	"github.com/modelboard/webapp/app/service"
	"github.com/modelboard/webapp/app/session"
	"github.com/modelboard/webapp/config"
	"github.com/modelboard/webapp/pkg/secrets"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bootstrap the bot user and owner invitations",
	Long:  `Create the system bot user if missing, create pending owner accounts for the configured owner emails, and print their signup invitation links.`,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	cipher, err := secrets.NewCipher(cfg.SessionEncryptionKey)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	listingRepo := repository.NewListingRepository(db)
	store := service.NewStore(userRepo, refreshTokenRepo, listingRepo)
	sessions := service.NewSessionService(cfg, cipher, store, userRepo)

	ctx := context.Background()

	bot, err := ensureBotUser(ctx, userRepo, cfg)
	if err != nil {
		return err
	}

	// All seeded rows are audit-stamped by the bot.
	botSession := &session.Session{
		Me:      bot,
		Loaders: repository.NewLoaders(userRepo, refreshTokenRepo, listingRepo),
	}

	for _, email := range cfg.OwnerEmails {
		owner, err := ensureOwner(ctx, botSession, store, userRepo, email)
		if err != nil {
			return fmt.Errorf("seed owner %s: %w", email, err)
		}
		if !owner.IsPending() {
			fmt.Printf("owner %s already signed up, skipping\n", email)
			continue
		}

		invitation, err := sessions.IssueInvitation(ctx, botSession, owner)
		if err != nil {
			return fmt.Errorf("invite owner %s: %w", email, err)
		}
		fmt.Printf("owner: %s\n", email)
		fmt.Printf("signup_url: %s\n", invitation.URL)
		fmt.Printf("expires_at: %s\n", invitation.RefreshToken.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

func ensureBotUser(ctx context.Context, users *repository.UserRepository, cfg *config.Config) (*entity.User, error) {
	bot, err := users.FindByID(ctx, cfg.BotUserID)
	if err != nil {
		return nil, err
	}
	if bot != nil {
		return bot, nil
	}

	now := time.Now()
	bot = &entity.User{
		ID:          cfg.BotUserID,
		Email:       "bot@" + cfg.CookieDomain,
		Role:        entity.RoleMember,
		AuthMethod:  entity.AuthMethodNone,
		CreatedByID: cfg.BotUserID,
		UpdatedByID: cfg.BotUserID,
		CreatedDate: now,
		UpdatedDate: now,
	}
	if err := users.Create(ctx, bot, service.CanonicalizeEmail(bot.Email)); err != nil {
		return nil, err
	}
	fmt.Printf("created bot user %s\n", bot.ID)
	return bot, nil
}

func ensureOwner(ctx context.Context, sess *session.Session, store *service.Store, users *repository.UserRepository, email string) (*entity.User, error) {
	existing, err := users.FindByCanonicalEmail(ctx, service.CanonicalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	return store.CreateUser(ctx, sess, service.NewUser{
		Email:      email,
		Role:       entity.RoleOwner,
		AuthMethod: entity.AuthMethodPending,
	})
}
