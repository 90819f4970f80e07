package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var tokenClaimsCmd = &cobra.Command{
	Use:   "claims [token]",
	Short: "Print the claims of a JWT credential without verifying it",
	Long: `Decodes a JWT-shaped credential and displays its claims. No signature
validation is performed; use 'token inspect' to actually verify it.`,
	Example: `  proms-mcp token claims eyJhbGciOi...

  # Read the token from stdin
  cat token.jwt | proms-mcp token claims -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenInput, err := readCredentialArg(args[0])
		if err != nil {
			return err
		}
		if tokenInput == "" {
			return fmt.Errorf("token cannot be empty")
		}

		parser := jwt.NewParser()
		token, _, err := parser.ParseUnverified(tokenInput, jwt.MapClaims{})
		if err != nil {
			return fmt.Errorf("parsing token: %w", err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fmt.Errorf("invalid token claims")
		}

		log.Info().Msg("Token Claims (unverified):")
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(claims); err != nil {
			log.Warn().Err(err).Msg("failed to pretty-print claims")
		}

		if issRaw, ok := claims["iss"]; ok {
			log.Info().Msgf("Issuer (iss): %v", issRaw)
		} else {
			log.Warn().Msg("Token does not contain 'iss' claim")
		}

		if subRaw, ok := claims["sub"]; ok {
			log.Info().Msgf("Subject (sub): %v", subRaw)
		}

		// print & parse expiration if present and print remaining
		if expRaw, ok := claims["exp"]; ok {
			if expFloat, ok := expRaw.(float64); ok {
				expTime := time.Unix(int64(expFloat), 0)
				remaining := time.Until(expTime)
				log.Info().Msgf("Expiration (exp): %v (in %v)", expTime, remaining)
			}
		}

		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenClaimsCmd)
}
