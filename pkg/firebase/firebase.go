package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// SetUpFireBase initialises the firebase app used for push delivery.
// Credentials path comes from FIREBASE_CREDENTIALS, falling back to the
// local service account file.
func SetUpFireBase() (*firebase.App, context.Context, error) {
	ctx := context.Background()

	credentials := os.Getenv("FIREBASE_CREDENTIALS")
	if credentials == "" {
		credentials = "serviceAccountKey.json"
	}

	opt := option.WithCredentialsFile(credentials)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	return app, ctx, nil
}
