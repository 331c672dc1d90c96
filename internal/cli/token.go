package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwttoken "mastercom/internal/jwt_token"
	id "mastercom/pkg/domain"
	"mastercom/pkg/requestcontext"
)

type tokenOutput struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newTokenCommand(opts *options) *cobra.Command {
	var (
		role   string
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if role != requestcontext.RoleMember && role != requestcontext.RoleReviewer {
				return fmt.Errorf("--role must be %q or %q", requestcontext.RoleMember, requestcontext.RoleReviewer)
			}
			user := id.UserID(uuid.New())
			if userID != "" {
				parsed, err := id.ParseUserID(userID)
				if err != nil {
					return fmt.Errorf("--user: %w", err)
				}
				user = parsed
			}
			if ttl <= 0 {
				ttl = opts.cfg.Auth.TokenTTL
			}

			auth := opts.cfg.Auth
			svc := jwttoken.NewJWTService(auth.JWTSigningKey, auth.Issuer, auth.Audience)
			token, err := svc.GenerateAccessToken(user, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return opts.outputJSON(out, tokenOutput{
					Token:     token,
					UserID:    user.String(),
					Role:      role,
					ExpiresAt: time.Now().Add(ttl).UTC(),
				})
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", requestcontext.RoleMember, "member or reviewer")
	cmd.Flags().StringVar(&userID, "user", "", "user id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (JWT_TTL when zero)")
	return cmd
}
