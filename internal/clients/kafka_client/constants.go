package kafka_client

import "time"

const (
	MAX_RETRIES      = 5
	RETRY_DELAY      = 2 * time.Second
	POLL_TIMEOUT     = 100 * time.Millisecond
	FLUSH_TIMEOUT_MS = 5000
)
