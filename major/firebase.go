package major

import (
	"context"
	"fleet-push-service/conf"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// InitFirebaseApp builds the Firebase app shared by the FCM transport and the
// Firestore token store.
func InitFirebaseApp(ctx context.Context) (*firebase.App, error) {
	var opts []option.ClientOption
	if conf.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.FirebaseCredentialsFile))
	}

	var config *firebase.Config
	if conf.FirebaseProjectID != "" {
		config = &firebase.Config{ProjectID: conf.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return app, nil
}
