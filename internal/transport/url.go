// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws-solutions/generative-ai-application-builder-on-aws-sub013/internal/auth"
)

// AuthenticatedURL returns a URLFactory that appends the current access
// token to the endpoint as an Authorization query parameter. The token
// provider is consulted on every call so reconnects pick up rotation.
func AuthenticatedURL(endpoint string, tokens auth.TokenProvider) URLFactory {
	return func(ctx context.Context) (string, error) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parsing socket endpoint: %w", err)
		}
		token, err := tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("acquiring access token: %w", err)
		}
		q := u.Query()
		q.Set("Authorization", token)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}
