package handler

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"opencampus/backend/internal/model"
)

// RegisterValidators 向 gin 默认校验引擎注册自定义 binding 标签，进程内调用一次
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return v.RegisterValidation("line_status", func(fl validator.FieldLevel) bool {
		return model.IsValidLineStatus(fl.Field().String())
	})
}
