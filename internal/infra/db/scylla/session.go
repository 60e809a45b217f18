// Package scylla persists conversations, messages, read markers and profiles
// in ScyllaDB. Unread counts are derived from per-user read markers rather
// than stored counters.
package scylla

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

var keyspacePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config holds the connection settings for a Scylla cluster.
type Config struct {
	Hosts             []string
	Keyspace          string
	Username          string
	Password          string
	Consistency       string
	Timeout           time.Duration
	ReplicationFactor int
}

// NewSession ensures schema exists and returns a connected Scylla session.
func NewSession(cfg Config, logger *slog.Logger) (*gocql.Session, error) {
	if !keyspacePattern.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("invalid keyspace name: %s", cfg.Keyspace)
	}
	consistency, err := parseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	baseCluster := gocql.NewCluster(cfg.Hosts...)
	baseCluster.Timeout = cfg.Timeout
	baseCluster.Consistency = consistency
	setAuth(baseCluster, cfg)

	baseSession, err := baseCluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to scylla: %w", err)
	}
	defer baseSession.Close()

	if err := ensureKeyspace(context.Background(), baseSession, cfg); err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Timeout = cfg.Timeout
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = consistency
	setAuth(cluster, cfg)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("connect to keyspace %s: %w", cfg.Keyspace, err)
	}
	if err := ensureTables(context.Background(), session, cfg); err != nil {
		session.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("scylla connected", "hosts", cfg.Hosts, "keyspace", cfg.Keyspace)
	}
	return session, nil
}

func ensureKeyspace(ctx context.Context, session *gocql.Session, cfg Config) error {
	cql := fmt.Sprintf(
		"CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		cfg.Keyspace, cfg.ReplicationFactor,
	)
	if err := session.Query(cql).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("create keyspace: %w", err)
	}
	return nil
}

func ensureTables(ctx context.Context, session *gocql.Session, cfg Config) error {
	tables := []struct {
		name string
		cql  string
	}{
		{"chat_conversations", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.chat_conversations (
	pair_key text PRIMARY KEY,
	id uuid,
	participants set<text>,
	property_address text,
	property_title text,
	status text,
	created_at timestamp,
	last_message_at timestamp,
	last_message_text text,
	last_message_sender text
);`, cfg.Keyspace)},
		{"chat_conversation_ids", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.chat_conversation_ids (
	id uuid PRIMARY KEY,
	pair_key text
);`, cfg.Keyspace)},
		{"chat_messages", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.chat_messages (
	conversation_id uuid,
	message_id timeuuid,
	sender_id text,
	receiver_id text,
	content text,
	type text,
	created_at timestamp,
	PRIMARY KEY (conversation_id, message_id)
) WITH CLUSTERING ORDER BY (message_id DESC);`, cfg.Keyspace)},
		{"chat_reads", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.chat_reads (
	conversation_id uuid,
	user_id text,
	last_read_at timestamp,
	PRIMARY KEY (conversation_id, user_id)
);`, cfg.Keyspace)},
		{"chat_profiles", fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.chat_profiles (
	id text PRIMARY KEY,
	name text,
	role text,
	avatar text
);`, cfg.Keyspace)},
	}
	for _, table := range tables {
		if err := session.Query(table.cql).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}
	return nil
}

func setAuth(cluster *gocql.ClusterConfig, cfg Config) {
	if cfg.Username == "" {
		return
	}
	cluster.Authenticator = gocql.PasswordAuthenticator{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	// avoid long stalls on auth/connect
	cluster.ConnectTimeout = cfg.Timeout
	cluster.Timeout = cfg.Timeout
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported scylla consistency: %s", raw)
	}
}
