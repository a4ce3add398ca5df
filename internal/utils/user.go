package utils

import (
	"errors"

	"github.com/gin-gonic/gin"
)

var ErrNotLoggedIn = errors.New("not logged in")

const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
	CtxIsAdmin  = "is_admin"
)

func GetUserID(c *gin.Context) (string, error) {
	uidRaw, exists := c.Get(CtxUserID)
	if !exists {
		return "", ErrNotLoggedIn
	}

	uid, ok := uidRaw.(string)
	if !ok || uid == "" {
		return "", errors.New("invalid user id in context")
	}
	return uid, nil
}

// OptionalUserID returns nil for anonymous requests.
func OptionalUserID(c *gin.Context) *string {
	uid, err := GetUserID(c)
	if err != nil {
		return nil
	}
	return &uid
}

func GetUsername(c *gin.Context) string {
	return c.GetString(CtxUsername)
}

// BrowsingIdentity scopes per-visitor state such as bookmarks: the user id when
// logged in, otherwise the X-Device-Id header.
func BrowsingIdentity(c *gin.Context) (string, bool) {
	if uid, err := GetUserID(c); err == nil {
		return "user:" + uid, true
	}
	if dev := c.GetHeader("X-Device-Id"); dev != "" {
		return "device:" + dev, true
	}
	return "", false
}
