// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"
	"strings"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"

	"github.com/gin-gonic/gin"
)

// BindVideoID 从 URI 绑定视频 ID
func BindVideoID(c *gin.Context) string {
	return c.Param("vid")
}

// BindLanguageCode 从 URI 绑定语言代码
func BindLanguageCode(c *gin.Context) string {
	return c.Param("lang")
}

// BindVersionNumber 从 URI 绑定版本号
func BindVersionNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("num"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// BindUserID 读取 Identity 中间件写入的用户 ID
func BindUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// VersionQuery 版本查询参数
type VersionQuery struct {
	Class entity.Class
	Order repository.SortOrder
}

// BindVersionQuery 解析 ?class=public|extant|full&order=asc|desc
func BindVersionQuery(c *gin.Context) (VersionQuery, error) {
	class, err := entity.ParseClass(c.Query("class"))
	if err != nil {
		return VersionQuery{}, err
	}
	order, err := repository.ParseSortOrder(c.Query("order"))
	if err != nil {
		return VersionQuery{}, err
	}
	return VersionQuery{Class: class, Order: order}, nil
}

// parseBool 解析布尔查询参数，失败时返回默认值
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindDeleteFlag 解析 ?delete=true
func BindDeleteFlag(c *gin.Context) bool {
	return parseBool(c.Query("delete"), false)
}
