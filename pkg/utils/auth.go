package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/domain/user"
)

// ContextUserKey is the gin context key holding the authenticated *user.User.
const ContextUserKey = "user"

var GetUserFromContext = func(c *gin.Context) (*user.User, error) {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, errors.New("user not found in context")
	}

	usr, ok := val.(*user.User)
	if !ok || usr == nil {
		return nil, errors.New("invalid user type in context")
	}
	return usr, nil
}

var GetUserIDFromContext = func(c *gin.Context) (uint, error) {
	usr, err := GetUserFromContext(c)
	if err != nil {
		return 0, err
	}
	return usr.ID, nil
}

// ParseIDParam reads a positive numeric path parameter.
func ParseIDParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}
