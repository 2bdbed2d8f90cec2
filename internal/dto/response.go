package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// ── 界面动作描述 ──

// ActionResponse 前端下一步要打开的视图（模型名、过滤条件、默认值），服务端不负责渲染
type ActionResponse struct {
	Type     string                 `json:"type"`      // 固定为 open_view
	Model    string                 `json:"model"`     // exam_attendee | attendance_sheet | exam ...
	ViewMode string                 `json:"view_mode"` // form | list
	ResID    string                 `json:"res_id,omitempty"`
	Domain   map[string]interface{} `json:"domain,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"` // 新建表单的默认字段值
}

// ── 状态变更日志 ──

// ChangeLogListRequest 变更日志查询参数
type ChangeLogListRequest struct {
	PaginationRequest
	EntityType string `form:"entity_type" binding:"required,oneof=exam exam_session attendance_sheet"`
	EntityID   string `form:"entity_id"   binding:"required"`
}

// ChangeLogResponse 变更日志条目
type ChangeLogResponse struct {
	ID         string `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	FromState  string `json:"from_state,omitempty"`
	ToState    string `json:"to_state,omitempty"`
	Message    string `json:"message,omitempty"`
	ActorID    string `json:"actor_id"`
	CreatedAt  string `json:"created_at"`
}
