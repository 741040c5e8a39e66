package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"yamdb-api/internal/core/config"
	"yamdb-api/internal/core/database"
	"yamdb-api/internal/core/logger"
	"yamdb-api/internal/domain"
	"yamdb-api/internal/service"
)

// opener 按配置打开数据库；测试里换成内存库
type opener func(configPath string) (*gorm.DB, *zap.Logger, func(), error)

func openFromConfig(configPath string) (*gorm.DB, *zap.Logger, func(), error) {
	cfg, err := config.Read(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read config: %w", err)
	}
	log, cleanup := logger.FromConfig(cfg.Log)
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("db open: %w", err)
	}
	return db, log, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		cleanup()
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "yamdb-admin",
		Short:         "yamdb maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")

	// withDB 打开库，执行 fn，最后释放
	withDB := func(fn func(cmd *cobra.Command, db *gorm.DB, log *zap.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, log, closeFn, err := open(configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(cmd, db, log)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the schema",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *gorm.DB, log *zap.Logger) error {
				if err := database.Migrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				log.Info("migrate done")
				fmt.Fprintln(cmd.OutOrStdout(), "migrated")
				return nil
			}),
		},
		createSuperuserCmd(withDB),
		setRoleCmd(withDB),
	)
	return root
}

type dbRunner = func(fn func(cmd *cobra.Command, db *gorm.DB, log *zap.Logger) error) func(*cobra.Command, []string) error

func createSuperuserCmd(withDB dbRunner) *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create a superuser account",
		Long: `Create a superuser in pending state. The account gets its token the
same way as everyone else: POST /v1/auth/signup/ with the same username and
email, then exchange the mailed code at /v1/auth/token/.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&username, "username", "", "username (required)")
	cmd.Flags().StringVar(&email, "email", "", "email (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	cmd.RunE = withDB(func(cmd *cobra.Command, db *gorm.DB, log *zap.Logger) error {
		u, err := service.NewUserService().Create(cmd.Context(), db, service.UserFields{
			Username: username,
			Email:    email,
			Role:     domain.RoleSuperuser,
		})
		if err != nil {
			return err
		}
		log.Info("superuser created", zap.Uint("uid", u.ID), zap.String("username", u.Username))
		fmt.Fprintf(cmd.OutOrStdout(), "superuser %s created\n", u.Username)
		return nil
	})
	return cmd
}

func setRoleCmd(withDB dbRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "setrole <username> <role>",
		Short:     "Change a user's role",
		Args:      cobra.ExactArgs(2),
		ValidArgs: roleNames(),
	}
	cmd.RunE = func(c *cobra.Command, args []string) error {
		role := domain.Role(strings.ToLower(args[1]))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q (one of %s)", args[1], strings.Join(roleNames(), ", "))
		}
		return withDB(func(cmd *cobra.Command, db *gorm.DB, log *zap.Logger) error {
			u, err := service.NewUserService().SetRole(cmd.Context(), db, args[0], role)
			if err != nil {
				return err
			}
			log.Info("role changed", zap.String("username", u.Username), zap.String("role", string(u.Role)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Username, u.Role)
			return nil
		})(c, args)
	}
	return cmd
}

func roleNames() []string {
	rs := domain.Roles()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
