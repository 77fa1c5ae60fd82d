package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/invite"
	"github.com/utafrali/storefront/internal/service"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/logger"
)

// cliConfig is the subset of service settings reviewctl needs.
type cliConfig struct {
	InviteSecret string        `env:"REVIEW_INVITE_SECRET"`
	InviteTTL    time.Duration `env:"REVIEW_INVITE_TTL" envDefault:"720h"`
}

func loadConfig() (*cliConfig, error) {
	if err := pkgconfig.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg := &cliConfig{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, err
	}
	if cfg.InviteSecret == "" {
		return nil, errors.New("REVIEW_INVITE_SECRET is not set")
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Operate the review service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInviteCmd(), newAdminCmd())
	return root
}

func newInviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Sign and inspect review invite tokens",
	}
	cmd.AddCommand(newInviteSignCmd(), newInviteVerifyCmd())
	return cmd
}

func newInviteSignCmd() *cobra.Command {
	var (
		accountID string
		productID string
		slug      string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Issue an invite token for an account and product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = cfg.InviteTTL
			}

			signer, err := invite.NewSigner([]byte(cfg.InviteSecret))
			if err != nil {
				return err
			}
			log := logger.Discard()
			invites := service.NewInviteService(signer, ttl, event.NewProducer(nil, log), log)

			inv, err := invites.Issue(cmd.Context(), accountID, productID, slug)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), inv)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "account id the invite is issued to")
	cmd.Flags().StringVar(&productID, "product", "", "product id the invite is valid for")
	cmd.Flags().StringVar(&slug, "slug", "", "product slug or name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default REVIEW_INVITE_TTL)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func newInviteVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check a token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			signer, err := invite.NewSigner([]byte(cfg.InviteSecret))
			if err != nil {
				return err
			}

			payload, err := signer.Verify(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				AccountID string    `json:"accountId"`
				ProductID string    `json:"productId"`
				Slug      string    `json:"slug"`
				ExpiresAt time.Time `json:"expires_at"`
			}{payload.AccountID, payload.ProductID, payload.Slug, payload.ExpiresAt()})
		},
	}
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage moderation console credentials",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its ADMIN_PASSWORD_HASH value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(password, "\r\n")
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	})
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
