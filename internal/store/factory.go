package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telemetryhub/event-buffer/internal/domain"
)

// Backends recognized by New.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// New selects the raw backing store by name. The pgx pool is only consulted
// for the postgres backend; main connects and migrates it beforehand.
func New(backend string, pool *pgxpool.Pool, dynamoTable string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendPostgres, "pg":
		if pool == nil {
			return nil, fmt.Errorf("postgres backend requires a connection pool")
		}
		return NewPostgresStore(pool), nil
	case BackendDynamoDB, "dynamo":
		sess := session.Must(session.NewSession())
		return NewDynamoStore(sess, dynamoTable), nil
	default:
		return nil, domain.ErrUnknownBackend
	}
}
