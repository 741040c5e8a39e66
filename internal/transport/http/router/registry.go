package router

import (
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"yamdb-api/internal/transport/http/ez"
)

// Module 资源模块把自己的动作挂到给定分组
type Module interface{ Mount(ez.EZ) }

// 可选：控制挂载顺序（数值越小越先挂），不实现默认 100
type prioritizer interface{ Priority() int }

type entry struct {
	prefix string
	mod    Module
	mw     []gin.HandlerFunc
}

// Registry 收集模块，统一挂到 /v1
type Registry struct {
	mu   sync.RWMutex
	mods []entry
}

func (r *Registry) Register(prefix string, m Module, mw ...gin.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = append(r.mods, entry{prefix: prefix, mod: m, mw: mw})
}

// MountAll 按优先级挂载；返回挂载顺序（前缀）
func (r *Registry) MountAll(api ez.EZ) []string {
	r.mu.RLock()
	mods := append([]entry(nil), r.mods...)
	r.mu.RUnlock()

	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i].mod) < priorityOf(mods[j].mod)
	})
	order := make([]string, 0, len(mods))
	for _, m := range mods {
		m.mod.Mount(api.Group(m.prefix, m.mw...))
		order = append(order, m.prefix)
	}
	return order
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
