package roleplay

import (
	"context"
	"net/http"
	"strconv"

	"RPChat/global"
	mid "RPChat/middleware"
	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// Hub is what the HTTP API needs from the chat hub.
type Hub interface {
	Narrate(ctx context.Context, roomID int64, content string) (*model.Message, error)
	Announce(content string) (int, error)
	MembersOf(roomID int64) []int64
	Stats() (connections, rooms int)
}

// ClusterPresence looks up a room across every gateway node.
type ClusterPresence func(ctx context.Context, roomID int64) ([]int64, error)

type Handler struct {
	hub     Hub
	cluster ClusterPresence
}

func NewHandler(hub Hub, cluster ClusterPresence) *Handler {
	return &Handler{hub: hub, cluster: cluster}
}

// Register mounts the API. Admin routes require auth; without auth they are not mounted.
func (h *Handler) Register(r gin.IRoutes, auth gin.HandlerFunc) {
	rt := mid.Routes{R: r, Auth: auth}
	rt.GET("/healthz", h.Health, mid.RouteOpt{})
	rt.GET("/api/rooms/:id/presence", h.Presence, mid.RouteOpt{})
	if auth != nil {
		rt.POST("/api/admin/rooms/:id/narrator", h.Narrate, mid.RouteOpt{IsAuth: true})
		rt.POST("/api/admin/announce", h.Announce, mid.RouteOpt{IsAuth: true})
	}
}

type contentReq struct {
	Content string `json:"content"`
}

func (h *Handler) Health(c *gin.Context) {
	conns, rooms := h.hub.Stats()
	c.JSON(http.StatusOK, global.Success(gin.H{"connections": conns, "rooms": rooms}))
}

func (h *Handler) Presence(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	data := gin.H{"roomId": roomID, "characters": h.hub.MembersOf(roomID)}
	if h.cluster != nil {
		all, err := h.cluster(c.Request.Context(), roomID)
		if err != nil {
			fail(c, errs.WrapMsg(err, "cluster presence"))
			return
		}
		if all == nil {
			all = []int64{}
		}
		data["cluster"] = all
	}
	c.JSON(http.StatusOK, global.Success(data))
}

func (h *Handler) Narrate(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrProtocol.WrapMsg("body must be {\"content\": string}"))
		return
	}
	msg, err := h.hub.Narrate(c.Request.Context(), roomID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(msg))
}

func (h *Handler) Announce(c *gin.Context) {
	var req contentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errs.ErrProtocol.WrapMsg("body must be {\"content\": string}"))
		return
	}
	n, err := h.hub.Announce(req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, global.Success(gin.H{"delivered": n}))
}

func roomParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, errs.ErrProtocol.WrapMsg("room id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func fail(c *gin.Context, err error) {
	status, body := global.Fail(err)
	c.AbortWithStatusJSON(status, body)
}
