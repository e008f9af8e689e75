package implementation

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Key scheme, one hash per entity plus the auxiliary collections:
//
//	user:{id}                  hash
//	email:{email}              string -> user id
//	users                      set of user ids
//	user_sessions:{userId}     zset, score = touch time (ms) — recency index
//	session:{id}               hash
//	session:{id}:messages      list of message ids, head sentinel "placeholder"
//	message:{id}               hash
//	image:{id}:meta            hash
const (
	usersSetKey  = "users"
	listSentinel = "placeholder"
)

func userKey(id uuid.UUID) string          { return "user:" + id.String() }
func emailKey(email string) string         { return "email:" + email }
func userSessionsKey(id uuid.UUID) string  { return "user_sessions:" + id.String() }
func sessionKey(id uuid.UUID) string       { return "session:" + id.String() }
func sessionMessagesKey(id uuid.UUID) string {
	return "session:" + id.String() + ":messages"
}
func messageKey(id uuid.UUID) string { return "message:" + id.String() }
func imageKey(id uuid.UUID) string   { return "image:" + id.String() + ":meta" }

const imageKeyPattern = "image:*:meta"

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseUUIDPtr(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
