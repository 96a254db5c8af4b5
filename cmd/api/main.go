package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/harentsoaR/clinic-api/internal/config"
	"github.com/harentsoaR/clinic-api/internal/logger"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-api",
		Short:         "Clinic management REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createUserCmd())
	rootCmd.AddCommand(ensureIndexesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads .env (if any), reads and validates the configuration and
// builds the process logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if envErr != nil {
		log.Debug().Msg("no .env file found, relying on environment variables")
	}
	return cfg, log, nil
}

func connectMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	if cfg.StoreDriver != config.DriverMongo {
		return nil, nil, fmt.Errorf("STORE_DRIVER=%s: this command needs MongoDB", cfg.StoreDriver)
	}
	client, db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("database", cfg.MongoDatabase).Msg("connected to MongoDB")
	return client, db, nil
}

func createUserCmd() *cobra.Command {
	var in services.RegisterInput
	var role string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, db, err := connectMongo(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			in.Role = models.Role(role)
			creds := services.NewCredentials(store.NewUserStore(db), utils.NewHasher(cfg.BcryptCost), log)
			u, err := creds.Register(ctx, in)
			if err != nil {
				return err
			}
			log.Info().Str("user_id", u.ID.Hex()).Str("username", u.Username).Str("role", string(u.Role)).Msg("user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "admin, staff, dentist or receptionist")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes, including the unique ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			client, db, err := connectMongo(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			if err := store.EnsureIndexes(ctx, db); err != nil {
				return err
			}
			log.Info().Msg("indexes ensured")
			return nil
		},
	}
}
