package views

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/MopedMap/logging"
	"github.com/GrainArc/MopedMap/methods"
	"github.com/GrainArc/MopedMap/response"
	"github.com/GrainArc/MopedMap/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
)

// 组件编辑会话

// PingInterval 心跳间隔
var PingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// SessionMessage 前端发来的消息，按 action 取用对应字段
type SessionMessage struct {
	Action string `json:"action"`

	Bounds []float64 `json:"bounds,omitempty"`
	Zoom   float64   `json:"zoom,omitempty"`
	Width  int       `json:"width,omitempty"`
	Height int       `json:"height,omitempty"`
	Wait   bool      `json:"wait,omitempty"`

	Click        *services.ClickEvent `json:"click,omitempty"`
	FeatureKey   string               `json:"feature_key,omitempty"`
	ComponentID  string               `json:"component_id,omitempty"`
	ComponentIDs []string             `json:"component_ids,omitempty"`
	LinkMode     string               `json:"link_mode,omitempty"`
	Layer        string               `json:"layer,omitempty"`
	ID           string               `json:"id,omitempty"`
	Checked      bool                 `json:"checked,omitempty"`
	Expanded     bool                 `json:"expanded,omitempty"`
	Feature      *geojson.Feature     `json:"feature,omitempty"`

	ComponentTypeID uint   `json:"component_type_id,omitempty"`
	Description     string `json:"description,omitempty"`
}

// SessionReply 服务端推送
type SessionReply struct {
	Type     string                `json:"type"` // snapshot | error
	Action   string                `json:"action,omitempty"`
	Snapshot *services.Snapshot    `json:"snapshot,omitempty"`
	Click    *services.ClickResult `json:"click,omitempty"`
	Code     string                `json:"code,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type SessionHandler struct {
	components *services.ComponentService
	base       services.EditorOptions

	mu       sync.Mutex
	sessions map[uint]map[*MapSession]struct{}
}

// NewSessionHandler base 提供查询客户端、图层配置与组件目录，项目相关字段在建立会话时填充
func NewSessionHandler(components *services.ComponentService, base services.EditorOptions) *SessionHandler {
	return &SessionHandler{
		components: components,
		base:       base,
		sessions:   make(map[uint]map[*MapSession]struct{}),
	}
}

func (h *SessionHandler) register(s *MapSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pid := s.editor.ProjectID()
	if h.sessions[pid] == nil {
		h.sessions[pid] = make(map[*MapSession]struct{})
	}
	h.sessions[pid][s] = struct{}{}
}

func (h *SessionHandler) unregister(s *MapSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pid := s.editor.ProjectID()
	delete(h.sessions[pid], s)
	if len(h.sessions[pid]) == 0 {
		delete(h.sessions, pid)
	}
}

// ComponentDeleted 通知该项目所有在线会话组件已删除
func (h *SessionHandler) ComponentDeleted(projectID uint, id string) {
	h.broadcastDelete(projectID, id, nil)
}

func (h *SessionHandler) broadcastDelete(projectID uint, id string, except *MapSession) {
	h.mu.Lock()
	targets := make([]*MapSession, 0, len(h.sessions[projectID]))
	for s := range h.sessions[projectID] {
		if s != except {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if s.editor.ForgetComponent(id) {
			s.notify("component_deleted")
		}
	}
}

// MapSession 一个 WebSocket 连接对应一个编辑器
type MapSession struct {
	hub    *SessionHandler
	conn   *websocket.Conn
	editor *services.ComponentEditor
	view   *services.Viewport
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Session 加载项目组件并升级到 WebSocket
func (h *SessionHandler) Session(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.components.EnsureProject(ctx, pid); err != nil {
		response.InternalError(c, err.Error())
		return
	}
	list, err := h.components.ListComponents(ctx, pid)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	session := &MapSession{
		hub:    h,
		conn:   conn,
		view:   services.NewViewport(0, 0),
		ctx:    sessionCtx,
		cancel: cancel,
	}
	opts := h.base
	opts.ProjectID = pid
	opts.Store = h.components
	opts.View = session.view
	opts.OnChange = session.push
	session.editor = services.NewComponentEditor(opts, list)
	h.register(session)

	logging.InfoContext(ctx, "map session opened", "project", pid, "components", len(list))
	session.write(SessionReply{Type: "snapshot", Snapshot: session.snapshot()})
	h.handleSession(session)
}

func (h *SessionHandler) handleSession(session *MapSession) {
	defer func() {
		h.unregister(session)
		session.cancel()
		session.editor.Close()
		session.conn.Close()
		logging.Info("map session closed", "project", session.editor.ProjectID())
	}()

	pingTicker := time.NewTicker(PingInterval)
	defer pingTicker.Stop()

	go func() {
		for {
			select {
			case <-session.ctx.Done():
				return
			case <-pingTicker.C:
				session.mu.Lock()
				err := session.conn.WriteMessage(websocket.PingMessage, nil)
				session.mu.Unlock()
				if err != nil {
					logging.Warn("ping failed", "error", err)
					session.cancel()
					return
				}
			}
		}
	}()

	for {
		select {
		case <-session.ctx.Done():
			return
		default:
		}

		var msg SessionMessage
		if err := session.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("websocket error", "error", err)
			}
			return
		}

		reply := SessionReply{Type: "snapshot", Action: msg.Action}
		click, err := session.dispatch(msg)
		if err != nil {
			logging.Debug("session action rejected", "action", msg.Action, "error", err)
			reply = SessionReply{Type: "error", Action: msg.Action, Code: ErrorCode(err), Error: err.Error()}
		} else {
			reply.Click = click
			reply.Snapshot = session.snapshot()
		}
		if !session.write(reply) {
			return
		}
	}
}

func (s *MapSession) dispatch(msg SessionMessage) (*services.ClickResult, error) {
	e := s.editor
	input := services.ComponentInput{TypeID: msg.ComponentTypeID, Description: msg.Description}

	switch msg.Action {
	case "viewport":
		b, err := methods.BoundsFromSlice(msg.Bounds)
		if err != nil {
			return nil, err
		}
		s.view.Report(b, msg.Zoom, msg.Width, msg.Height)
		if msg.Wait {
			return nil, e.RefreshFeatures(s.ctx)
		}
		e.OnViewportChange(s.ctx)
	case "click":
		if msg.Click == nil {
			return nil, errors.New("click is required")
		}
		res, err := e.HandleClick(*msg.Click)
		if err != nil {
			return nil, err
		}
		return &res, nil
	case "hover":
		if msg.ComponentID != "" {
			e.HoverComponent(msg.ComponentID)
		} else {
			e.HoverFeature(msg.FeatureKey)
		}
	case "new_component":
		return nil, e.NewComponent()
	case "edit_component":
		return nil, e.EditComponent(msg.ComponentID)
	case "link_mode":
		mode, err := services.ParseLinkMode(msg.LinkMode)
		if err != nil {
			return nil, err
		}
		return nil, e.ChooseLinkMode(mode)
	case "save":
		_, err := e.SaveDraft(s.ctx, input)
		return nil, err
	case "cancel":
		return nil, e.Cancel()
	case "draw_start":
		return nil, e.StartDrawing()
	case "draw_end":
		return nil, e.FinishDrawing(msg.Feature)
	case "select":
		return nil, e.Select(msg.Layer, msg.ID)
	case "link_components":
		return nil, e.LinkSelectedToComponents(s.ctx, msg.ComponentIDs)
	case "create_from_selection":
		_, err := e.CreateComponentFromSelection(s.ctx, input)
		return nil, err
	case "delete_component":
		if err := e.DeleteComponent(s.ctx, msg.ComponentID); err != nil {
			return nil, err
		}
		s.hub.broadcastDelete(e.ProjectID(), msg.ComponentID, s)
	case "list_check":
		return nil, e.CheckListItem(msg.ComponentID, msg.Checked)
	case "list_expand":
		return nil, e.ExpandListItem(msg.ComponentID, msg.Expanded)
	default:
		return nil, errors.New("unknown action " + msg.Action)
	}
	return nil, nil
}

func (s *MapSession) snapshot() *services.Snapshot {
	snap := s.editor.Snapshot()
	return &snap
}

// push 抓取完成等异步变化时推送快照
func (s *MapSession) push() {
	s.notify("")
}

func (s *MapSession) notify(action string) {
	if s.ctx.Err() != nil || s.editor == nil {
		return
	}
	s.write(SessionReply{Type: "snapshot", Action: action, Snapshot: s.snapshot()})
}

func (s *MapSession) write(reply SessionReply) bool {
	s.mu.Lock()
	err := s.conn.WriteJSON(reply)
	s.mu.Unlock()
	if err != nil {
		logging.Warn("failed to send session reply", "type", reply.Type, "error", err)
		s.cancel()
		return false
	}
	return true
}

// ErrorCode 错误对应的前端错误码
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, services.ErrFeatureNotLoaded):
		return "feature_not_loaded"
	case errors.Is(err, services.ErrComponentTypeRequired):
		return "component_type_required"
	case errors.Is(err, services.ErrUnknownComponentType):
		return "unknown_component_type"
	case errors.Is(err, services.ErrNoDraft):
		return "no_draft"
	case errors.Is(err, services.ErrUnknownComponent):
		return "unknown_component"
	case errors.Is(err, services.ErrEmptySelection):
		return "empty_selection"
	case errors.Is(err, services.ErrGeometryMismatch):
		return "geometry_mismatch"
	case errors.Is(err, services.ErrUnknownSourceLayer):
		return "unknown_layer"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "bad_request"
}
