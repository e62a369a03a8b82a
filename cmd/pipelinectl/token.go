package main

import (
	"errors"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/auth"
	"github.com/fiftycompanies/waide-sub001/internal/config"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "签发访问令牌，供脚本或运维调用 API",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

var (
	flagTokenTenant string
	flagTokenRoles  []string
	flagTokenTTL    time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&flagTokenTenant, "tenant", "", "租户 ID")
	tokenCmd.Flags().StringSliceVar(&flagTokenRoles, "role", nil, "角色，可重复或逗号分隔，如 operator")
	tokenCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 0, "有效期，默认取 auth.access_expiry")
	_ = tokenCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := issueToken(&cfg.Auth, args[0], flagTokenTenant, flagTokenRoles, flagTokenTTL)
	if err != nil {
		return err
	}
	plainf("%s\n", token)
	return nil
}

// issueToken 使用服务端相同的密钥与签发方生成令牌
func issueToken(cfg *config.AuthConfig, userID, tenantID string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return "", errors.New("未配置 auth.jwt_secret")
	}
	svc := auth.NewJWTService(cfg.JWTSecret, cfg.Issuer, auth.WithAccessExpiry(cfg.AccessExpiry))
	return svc.GenerateAccessToken(userID, tenantID, roles, ttl)
}
