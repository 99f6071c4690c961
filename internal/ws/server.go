// Package ws bridges browser websocket connections to room sessions.
// Each connection owns exactly one session: opened on connect, closed
// on disconnect, never shared across rooms.
package ws

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/elliot-conan/mindwellness-chat/internal/presence"
	"github.com/elliot-conan/mindwellness-chat/internal/service"
)

type Server struct {
	chat     *service.ChatService
	rooms    *service.RoomService
	profiles *service.ProfileService
	pres     *presence.Tracker
	log      *zap.SugaredLogger
}

func NewServer(chat *service.ChatService, rooms *service.RoomService, profiles *service.ProfileService, pres *presence.Tracker, log *zap.SugaredLogger) *Server {
	return &Server{chat: chat, rooms: rooms, profiles: profiles, pres: pres, log: log}
}

// HandleRoom is the websocket.Handler behind /ws/rooms/:room_id. The
// JWT middleware stowed the profile id in Locals before the upgrade.
func (s *Server) HandleRoom(conn *websocket.Conn) {
	profileID, _ := conn.Locals("profile_id").(string)
	roomID := conn.Params("room_id")
	if profileID == "" || roomID == "" {
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	observer, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		s.log.Warnw("ws profile lookup failed", "profile", profileID, "err", err)
		_ = conn.Close()
		return
	}
	if _, err := s.rooms.Authorize(ctx, roomID, profileID); err != nil {
		s.log.Warnw("ws room authorization failed", "room", roomID, "profile", profileID, "err", err)
		_ = conn.Close()
		return
	}

	session, err := s.chat.OpenRoom(ctx, roomID, observer)
	if err != nil {
		s.log.Errorw("ws room open failed", "room", roomID, "err", err)
		_ = conn.Close()
		return
	}

	if s.pres != nil {
		if err := s.pres.Join(ctx, roomID, profileID); err != nil {
			s.log.Warnw("presence join failed", "room", roomID, "profile", profileID, "err", err)
		}
	}

	c := newConnection(conn, session, s.pres, s.log)
	c.run()
}
