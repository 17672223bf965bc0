package repository

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	activeSessionKey = "traffic:session:active"
	historyKey       = "traffic:history"
	usersKey         = "traffic:users"
)

func resultKey(ownerID int64) string {
	return fmt.Sprintf("traffic:result:%d", ownerID)
}

// isWrongType reports a key holding a different Redis type than expected.
// Such a key is corrupt state and is read as empty.
func isWrongType(err error) bool {
	return redis.HasErrorPrefix(err, "WRONGTYPE")
}
