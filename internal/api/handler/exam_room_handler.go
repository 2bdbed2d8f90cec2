package handler

import (
	"github.com/gin-gonic/gin"

	"opencampus/backend/internal/dto"
	"opencampus/backend/internal/service"
	"opencampus/backend/pkg/response"
)

// ExamRoomHandler 考场 HTTP 处理器
type ExamRoomHandler struct {
	roomSvc service.ExamRoomService
}

// NewExamRoomHandler 创建 ExamRoomHandler
func NewExamRoomHandler(roomSvc service.ExamRoomService) *ExamRoomHandler {
	return &ExamRoomHandler{roomSvc: roomSvc}
}

// ListRooms GET /api/v1/exam-rooms
func (h *ExamRoomHandler) ListRooms(c *gin.Context) {
	var req dto.ExamRoomListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, total, err := h.roomSvc.List(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeRoom, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetRoom GET /api/v1/exam-rooms/:id
func (h *ExamRoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, codeRoom, err)
		return
	}
	response.OK(c, room)
}

// CreateRoom POST /api/v1/exam-rooms
func (h *ExamRoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateExamRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	room, err := h.roomSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		handleServiceError(c, codeRoom, err)
		return
	}
	response.Created(c, room)
}

// UpdateRoom PUT /api/v1/exam-rooms/:id
func (h *ExamRoomHandler) UpdateRoom(c *gin.Context) {
	var req dto.UpdateExamRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	room, err := h.roomSvc.Update(c.Request.Context(), c.Param("id"), &req, actor)
	if err != nil {
		handleServiceError(c, codeRoom, err)
		return
	}
	response.OK(c, room)
}
