package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/app-sre/proms-mcp/internal/core"
)

var tokenInspectVerbose bool

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect [token]",
	Short: "Verify a credential against the configured authenticator chain",
	Long: `Runs the credential through the authenticator chain from the server
config, exactly as the server would on a request, and prints the resolved
identity and its scopes. The credential itself is never echoed.`,
	Example: `  # Verify a token against the chain in the server config
  proms-mcp token inspect --config server.yaml sha256~abc...

  # Read the token from stdin
  oc whoami -t | proms-mcp token inspect --config server.yaml -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credential, err := readCredentialArg(args[0])
		if err != nil {
			return err
		}
		if credential == "" {
			return fmt.Errorf("credential cannot be empty")
		}

		chain, _, err := f.BuildLocalChain(cmd.Context())
		if err != nil {
			return err
		}

		var (
			identity *core.Identity
			failures []error
		)
		for _, authenticator := range chain {
			log.Debug().Msgf("Trying authenticator '%s'...", authenticator.Name())
			id, err := authenticator.Authenticate(cmd.Context(), credential)
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", authenticator.Name(), err))
				continue
			}
			identity = id
			break
		}

		if identity == nil {
			log.Error().Msgf("%s credential was rejected by every authenticator", redCross)
			for _, failure := range failures {
				log.Error().Msgf("  cause: %s (%s)", failure, core.CauseClass(failure))
			}
			return errors.New("verification failed")
		}

		fmt.Println(bold("\n── Resolved Identity ──"))
		fmt.Printf("  %s:  %s\n", faint("Username"), identity.Username)
		fmt.Printf("  %s:   %s\n", faint("Subject"), identity.SubjectID)
		fmt.Printf("  %s:    %s\n", faint("Groups"), strings.Join(identity.Groups, ", "))
		fmt.Printf("  %s:    %s\n", faint("Method"), identity.Method)
		fmt.Printf("  %s:    %s\n", faint("Scopes"), strings.Join(core.ScopesFor(*identity), ", "))

		if tokenInspectVerbose {
			log.Info().Msg(spew.Sdump(identity))
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)

	f.bindConfigFlag(tokenInspectCmd.Flags())
	_ = tokenInspectCmd.MarkFlagRequired("config")
	tokenInspectCmd.Flags().BoolVarP(&tokenInspectVerbose, "verbose", "v", false,
		"Dump the full identity structure")
}
