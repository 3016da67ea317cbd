// Package bolt implements the repositories on top of a single BoltDB file for
// single-node deployments. Tasks live in nested buckets todos/{uid}/{taskId}.
package bolt

const (
	bucketUsers     = "users"
	bucketEmails    = "users_by_email"
	bucketProviders = "user_providers"
	bucketTodos     = "todos"
	bucketSessions  = "sessions"
)

// Buckets lists every top-level bucket the repositories need.
var Buckets = []string{bucketUsers, bucketEmails, bucketProviders, bucketTodos, bucketSessions}

func providerKey(provider, subject string) string {
	return provider + "\x00" + subject
}
