package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"LyricStage/core/scene"
	"LyricStage/core/session"
	"LyricStage/core/timeline"
	"LyricStage/logger"
	"LyricStage/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Handler HTTP 处理器
type Handler struct {
	manager     *session.Manager
	source      timeline.Source
	defaultSong string
	upgrader    websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(manager *session.Manager, source timeline.Source, defaultSong string) *Handler {
	return &Handler{
		manager:     manager,
		source:      source,
		defaultSong: defaultSong,
		upgrader: websocket.Upgrader{
			// 跨域由 cors 中间件处理
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeSessionError 按错误类型映射状态码
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSongNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrUnknownControl):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("会话操作失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HealthHandler 健康检查
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": len(h.manager.List()),
	})
}

// ListSongsHandler 曲库
func (h *Handler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.DefaultSongs)
}

// GetTimelineHandler 歌曲时间轴
func (h *Handler) GetTimelineHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tl, err := h.source.Load(r.Context(), id)
	if err != nil {
		if errors.Is(err, timeline.ErrNotFound) {
			writeError(w, http.StatusNotFound, "timeline not found")
			return
		}
		logger.Error("加载时间轴失败", logger.String("songId", id), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	SongID string `json:"songId"`
	Scene  string `json:"scene"`
}

// CreateSessionHandler 创建会话
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "无效的请求")
			return
		}
	}
	if req.SongID == "" {
		req.SongID = h.defaultSong
	}

	var mode scene.Mode
	if req.Scene != "" {
		m, err := scene.ParseMode(req.Scene)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	s, err := h.manager.Create(r.Context(), req.SongID, mode)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	info, err := h.manager.Info(s.ID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// ListSessionsHandler 所有会话
func (h *Handler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.List())
}

// GetSessionHandler 会话状态
func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.Info(mux.Vars(r)["id"])
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteSessionHandler 关闭会话
func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(mux.Vars(r)["id"]); err != nil {
		writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) control(w http.ResponseWriter, id string, typ session.MessageType, data session.ControlData) {
	if err := h.manager.Control(id, typ, data); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrUnknownControl) {
			writeSessionError(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := h.manager.Info(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ControlHandler play / pause / stop
func (h *Handler) ControlHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.control(w, vars["id"], session.MessageType(vars["action"]), session.ControlData{})
}

// SeekRequest 跳转请求
type SeekRequest struct {
	Position *int64 `json:"position"`
}

// SeekHandler 跳转
func (h *Handler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		writeError(w, http.StatusBadRequest, "position is required")
		return
	}
	h.control(w, mux.Vars(r)["id"], session.MsgTypeSeek, session.ControlData{Position: req.Position})
}

// SceneRequest 切换场景请求
type SceneRequest struct {
	Scene string `json:"scene"`
}

// SceneHandler 切换场景
func (h *Handler) SceneHandler(w http.ResponseWriter, r *http.Request) {
	var req SceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "无效的请求")
		return
	}
	h.control(w, mux.Vars(r)["id"], session.MsgTypeScene, session.ControlData{Scene: req.Scene})
}

// WebSocketHandler 订阅会话帧并接收控制消息
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.manager.Get(id); err != nil {
		writeSessionError(w, err)
		return
	}

	// 升级为 WebSocket 连接
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	hub := h.manager.Hub()
	client := session.NewClient(hub, conn, id)
	if !hub.Register(client) {
		conn.Close()
		return
	}

	// 先同步一次会话状态
	if info, err := h.manager.Info(id); err == nil {
		if data, err := json.Marshal(info); err == nil {
			client.SendMessage(&session.WSMessage{Type: session.MsgTypeSync, Data: data})
		}
	}

	// 启动读写协程
	go client.WritePump()
	go client.ReadPump(context.Background(), h.manager.HandleMessage)

	logger.Info("WebSocket 连接建立",
		logger.String("sessionId", id),
		logger.String("client", client.ID))
}
