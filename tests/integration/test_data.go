package integration

import (
	"fmt"
	"time"
)

// TestUser generates unique test user credentials using a timestamp
func TestUser(suffix string) (email, userID, password string) {
	ts := time.Now().UnixNano()
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	userID = fmt.Sprintf("test-%d-%s", ts, suffix)
	password = "TestPassword123!"
	return
}
