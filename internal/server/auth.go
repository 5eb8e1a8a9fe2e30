package server

import (
	"net/http"
	"strings"
)

// 管理接口信任前置的 oauth2-proxy，身份与分组从请求头读取，
// 本服务自身不做认证。
const (
	headerPreferredUsername = "X-Auth-Request-Preferred-Username"
	headerUser              = "X-Auth-Request-User"
	headerGroups            = "X-Auth-Request-Groups"
)

const (
	roleAdmin    = "admin"
	roleOperator = "operator"
	roleViewer   = "viewer"
)

// User 表示经代理认证后的调用者。
type User struct {
	Username string
	Roles    map[string]struct{}
}

func userFromRequest(r *http.Request) User {
	username := r.Header.Get(headerPreferredUsername)
	if username == "" {
		username = r.Header.Get(headerUser)
	}
	if username == "" {
		username = "unknown"
	}

	roles := make(map[string]struct{})
	for _, g := range strings.Split(r.Header.Get(headerGroups), ",") {
		if g = strings.TrimSpace(g); g != "" {
			roles[g] = struct{}{}
		}
	}

	return User{Username: username, Roles: roles}
}

func (u User) hasAnyRole(allowed ...string) bool {
	for _, role := range allowed {
		if _, ok := u.Roles[role]; ok {
			return true
		}
	}
	return false
}
