// Package remote talks to the Firestore survey backend. It owns the
// Firebase app handle, the live survey query, one-shot content fetches,
// and submission uploads. Local state never lives here.
package remote

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/groundctl/gnd/internal/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Roles that grant visibility of a survey to a user in its ACL map.
var visibleRoles = []any{"owner", "survey-organizer", "data-collector", "viewer"}

// Client wraps the Firebase app and Firestore connection for a session.
type Client struct {
	fs         *firestore.Client
	auth       *auth.Client
	surveysCol string
	configCol  string
	logger     *zap.Logger
}

// NewClient initializes the Firebase app and opens Firestore and Auth
// clients. credentialsFile may be empty, in which case application
// default credentials apply.
func NewClient(ctx context.Context, fb config.Firebase, rc config.Remote, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if fb.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(fb.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: fb.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("auth client: %w", err)
	}

	surveysCol, configCol := rc.Collections()
	return &Client{
		fs:         fs,
		auth:       authClient,
		surveysCol: surveysCol,
		configCol:  configCol,
		logger:     logger,
	}, nil
}

// Auth returns the Firebase auth client, used by the daemon API to verify
// caller ID tokens.
func (c *Client) Auth() *auth.Client {
	return c.auth
}

// Close releases the Firestore connection.
func (c *Client) Close() error {
	return c.fs.Close()
}
