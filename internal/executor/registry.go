package executor

import (
	"fmt"

	"copyflow/internal/model"
)

// Registry 维护平台到执行器的全量映射。
// 未知平台是明确的错误，不存在兜底执行器。
type Registry struct {
	executors map[model.Platform]Executor
}

// NewRegistry 创建空映射。
func NewRegistry() *Registry {
	return &Registry{executors: make(map[model.Platform]Executor)}
}

// Register 注册某个平台的执行器。
func (r *Registry) Register(platform model.Platform, exec Executor) {
	r.executors[platform] = exec
}

// ForPlatform 返回平台对应的执行器。
func (r *Registry) ForPlatform(platform model.Platform) (Executor, error) {
	exec, ok := r.executors[platform]
	if !ok {
		return nil, fmt.Errorf("executor: 未知交易平台 %q", platform)
	}
	return exec, nil
}
