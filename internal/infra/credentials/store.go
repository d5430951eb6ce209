package credentials

import (
	"context"
	"strings"

	"server/internal/infra"
	"server/internal/sqlinline"
)

const (
	ProviderKling = "kling"
)

// Store reads vendor credentials from the integration_tokens table. Key
// rotation happens outside this service; only the read path lives here.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// KlingKeyPair returns the stored access/secret key pair. The token column
// holds "access:secret"; both parts empty means no credentials configured.
func (s *Store) KlingKeyPair(ctx context.Context) (accessKey, secretKey string, err error) {
	token, err := s.Token(ctx, ProviderKling)
	if err != nil {
		return "", "", err
	}
	access, secret, _ := strings.Cut(token, ":")
	return strings.TrimSpace(access), strings.TrimSpace(secret), nil
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}
