// Command provision-admin creates (or finds) an auth user and marks its
// profile as admin. It needs the service role key.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/snapzone/storefront/internal/identity"
	"github.com/snapzone/storefront/internal/logging"
	"github.com/snapzone/storefront/supabase"
)

func main() {
	var (
		envFile  = flag.String("env", ".env", "Path to .env with SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_SERVICE_KEY")
		email    = flag.String("email", "", "Admin email address")
		password = flag.String("password", "", "Admin password (defaults to ADMIN_PASSWORD)")
		fullName = flag.String("name", "Store Admin", "Admin display name")
	)
	flag.Parse()

	logger := logging.NewFromEnv("provision-admin")

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Fatalf("load env (%s)", *envFile)
	}
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if strings.TrimSpace(*email) == "" || *password == "" {
		logger.Fatal("-email and -password (or ADMIN_PASSWORD) are required")
	}

	client, err := supabase.New(supabase.Config{
		ProjectURL: os.Getenv("SUPABASE_URL"),
		AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
		ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	})
	if err != nil {
		logger.WithError(err).Fatal("create Supabase client")
	}
	if !client.HasServiceKey() {
		logger.Fatal("SUPABASE_SERVICE_KEY is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	userID, err := ensureUser(ctx, client, strings.TrimSpace(*email), *password, *fullName)
	if err != nil {
		logger.WithError(err).Fatal("provision auth user")
	}

	profiles := identity.NewSupabaseProfiles(client)
	if err := profiles.UpsertAsOperator(ctx, identity.Profile{
		ID:       userID,
		Email:    strings.TrimSpace(*email),
		FullName: *fullName,
		Role:     identity.RoleAdmin,
	}); err != nil {
		logger.WithError(err).Fatal("write admin profile")
	}

	logger.WithFields(map[string]interface{}{
		"user_id": userID,
		"email":   *email,
	}).Info("Admin provisioned")
}

// ensureUser creates a confirmed user, or signs in when the email is taken.
func ensureUser(ctx context.Context, client *supabase.Client, email, password, fullName string) (string, error) {
	user, err := client.Auth().AdminCreateUser(ctx, supabase.AdminUserRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: map[string]any{"full_name": fullName},
	})
	if err == nil {
		return user.ID, nil
	}

	switch supabase.StatusCode(err) {
	case http.StatusUnprocessableEntity, http.StatusConflict, http.StatusBadRequest:
	default:
		return "", fmt.Errorf("create user: %w", err)
	}

	sess, signInErr := client.Auth().SignInWithPassword(ctx, email, password)
	if signInErr != nil {
		return "", fmt.Errorf("user exists but sign-in failed: %w", signInErr)
	}
	if sess.User == nil || sess.User.ID == "" {
		return "", fmt.Errorf("sign-in returned no user")
	}
	return sess.User.ID, nil
}
