// Package firebase holds the adapters between the join flow and Firebase:
// Authentication (admin and REST), Firestore profiles and the callable
// Cloud Functions that own invites.
package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/dimitrije/teamjoin/internal/config"
	"google.golang.org/api/option"
)

func NewApp(ctx context.Context, cfg config.FirebaseConfig, opts ...option.ClientOption) (*firebase.App, error) {
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	appCfg := &firebase.Config{ProjectID: cfg.ProjectID}
	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase app: %w", err)
	}
	return app, nil
}

func NewAuthClient(ctx context.Context, app *firebase.App) (*auth.Client, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firebase auth: %w", err)
	}
	return client, nil
}

func NewFirestoreClient(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init firestore: %w", err)
	}
	return client, nil
}
