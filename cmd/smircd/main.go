package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smirc/smircd/internal/app"
	"github.com/smirc/smircd/internal/config"
	"github.com/smirc/smircd/internal/log"
	"github.com/smirc/smircd/internal/store"
	"github.com/smirc/smircd/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "smircd",
		Short:        "SMS group-chat relay daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.AddCommand(newAreaCodeCmd(&configPath))

	return root
}

func runServe(configPath string) error {
	bootstrap := log.New("info")
	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().
		Str("config", path).
		Str("inbound_dir", cfg.InboundDir).
		Str("outbound_dir", cfg.OutboundDir).
		Msg("starting smircd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(ctx); err != nil {
		return err
	}
	logger.Info().Msg("smircd stopped")
	return nil
}

// newAreaCodeCmd manages the service-area table. Inbound messages from
// numbers whose prefix is not listed are dropped, so operators seed this
// table before the relay answers anyone.
func newAreaCodeCmd(configPath *string) *cobra.Command {
	areacode := &cobra.Command{
		Use:   "areacode",
		Short: "manage the service-area table",
	}

	add := &cobra.Command{
		Use:   "add <country-code> <area-code> [region] [country]",
		Short: "add one served country/area code pair",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			countryCode, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("country code must be numeric: %w", err)
			}
			areaCode, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("area code must be numeric: %w", err)
			}
			ac := store.AreaCode{CountryCode: countryCode, AreaCode: areaCode}
			if len(args) > 2 {
				ac.Region = args[2]
			}
			if len(args) > 3 {
				ac.Country = args[3]
			}

			logger := log.New("warn")
			cfg, _, err := config.Load(logger, *configPath)
			if err != nil {
				return err
			}

			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.AddAreaCode(cmd.Context(), ac); err != nil {
				return err
			}
			fmt.Printf("added area code %d/%03d\n", ac.CountryCode, ac.AreaCode)
			return nil
		},
	}

	areacode.AddCommand(add)
	return areacode
}
