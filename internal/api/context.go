package api

import "github.com/gin-gonic/gin"

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

func GetUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func GetUserRole(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserRole)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
