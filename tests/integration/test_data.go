package integration

import (
	"fmt"
	"sync/atomic"
	"time"
)

var userSeq atomic.Int64

// TestUser generates unique credentials for a test user
func TestUser(suffix string) (username, email, password string) {
	n := userSeq.Add(1)
	username = fmt.Sprintf("test%d%s%d", time.Now().Unix(), suffix, n)
	email = username + "@prendaria.test"
	password = "TestPassword123!"
	return
}
