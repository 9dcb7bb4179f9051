package service

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
)

// requestIDFromContext 从请求上下文读取请求 ID
func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value("request_id"); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// mustJSON 序列化操作详情,失败时退化为空对象
func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(data)
}
