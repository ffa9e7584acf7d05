package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/oauth2"

	"dailylog-bot/internal/blob"
	"dailylog-bot/pkg/logger"
)

func main() {
	redirect := pflag.String("redirect-url", "urn:ietf:wg:oauth:2.0:oob", "OAuth redirect URL registered for the client")
	pflag.Parse()
	log := logger.New(os.Stderr, "info", true)

	if pflag.NArg() < 1 {
		log.Fatal().Msg("usage: drive-auth-helper [--redirect-url URL] <credentials.json>")
	}
	credentialsFile := pflag.Arg(0)

	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", credentialsFile).Msg("failed to read credentials file")
	}
	config, err := blob.OAuthConfig(raw)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse credentials")
	}
	config.RedirectURL = *redirect

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Printf("🔗 Google Drive OAuth2 Authorization Helper\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("1. Open this URL in your browser:\n")
	fmt.Printf("   %s\n\n", authURL)
	fmt.Printf("2. Authorize the application\n")
	fmt.Printf("3. Copy the authorization code and enter it below\n\n")
	fmt.Printf("📝 Enter the authorization code: ")

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		log.Fatal().Err(err).Msg("failed to read authorization code")
	}

	token, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to exchange code for token")
	}
	if token.RefreshToken == "" {
		log.Fatal().Msg("no refresh token returned; revoke the app's access and retry")
	}

	fmt.Printf("\n✅ Successfully obtained tokens!\n")
	fmt.Printf("===========================================\n")
	fmt.Printf("Add these to your .env file:\n\n")
	fmt.Printf("STORE_BACKEND=drive\n")
	fmt.Printf("GOOGLE_CREDENTIALS_JSON='%s'\n", string(raw))
	fmt.Printf("GOOGLE_REFRESH_TOKEN='%s'\n", token.RefreshToken)
	fmt.Printf("\nAccess token expires: %v\n", token.Expiry)
}
