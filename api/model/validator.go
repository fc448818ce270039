package model

import (
	"encoding/json"

	"github.com/fyerfyer/delta-render-service/internal/delta"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("delta", validateDelta)
	}
}

// validateDelta 校验字段是可解析的Delta内容
// 具体的渲染问题由服务层处理，这里只做结构检查
func validateDelta(fl validator.FieldLevel) bool {
	raw, ok := fl.Field().Interface().(json.RawMessage)
	if !ok {
		return false
	}
	if len(raw) == 0 {
		// 空内容交给required/omitempty处理
		return true
	}
	_, err := delta.Parse(raw)
	return err == nil
}
