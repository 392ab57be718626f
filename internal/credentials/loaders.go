package credentials

import (
	"context"

	"spreadboard/config"
	"spreadboard/pkg/dhan"
)

// Static returns the credentials written in the config file.
func Static(cfg config.CredentialsConfig) Loader {
	return LoaderFunc(func(context.Context) (dhan.Credentials, error) {
		return dhan.Credentials{AccessToken: cfg.AccessToken, ClientID: cfg.ClientID}, nil
	})
}

// FromParameters reads the token and client id from SSM parameters.
func FromParameters(secrets config.SecretGetter, cfg config.CredentialsConfig) Loader {
	return LoaderFunc(func(ctx context.Context) (dhan.Credentials, error) {
		token, err := secrets.Get(ctx, cfg.SSMAccessToken)
		if err != nil {
			return dhan.Credentials{}, err
		}
		clientID, err := secrets.Get(ctx, cfg.SSMClientID)
		if err != nil {
			return dhan.Credentials{}, err
		}
		return dhan.Credentials{AccessToken: token, ClientID: clientID}, nil
	})
}
