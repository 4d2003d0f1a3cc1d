package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/sketchdash/sketchdash/internal/game"
)

// Server is the event gateway: it maps inbound socket events to game manager
// calls and fans the manager's broadcasts back out. Handler return values are
// delivered as socket.io acks.
type Server struct {
	manager *game.Manager
	io      *socketio.Server
}

func New() *Server {
	return &Server{}
}

// SetManager wires the game manager in after construction; the manager needs
// the server as its broadcaster, so the two are linked in two steps.
func (srv *Server) SetManager(m *game.Manager) { srv.manager = m }

// Broadcast implements game.Broadcaster for the global audience.
func (srv *Server) Broadcast(event string, payload any) {
	if srv.io != nil {
		srv.io.BroadcastToNamespace("/", event, payload)
	}
}

// BroadcastRoom implements game.Broadcaster for one session's room.
func (srv *Server) BroadcastRoom(room, event string, payload any) {
	if srv.io != nil {
		srv.io.BroadcastToRoom("/", room, event, payload)
	}
}

// Mount attaches the Socket.IO server with all game handlers to the given
// Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// liveness probe, informational only
	io.OnEvent("/", "heartbeat", func(s socketio.Conn) {
		s.Emit("heartbeat")
	})

	io.OnEvent("/", "joinGame", func(s socketio.Conn, payload struct {
		PlayerName string `json:"playerName"`
	}) {
		session, err := srv.manager.Join(context.Background(), payload.PlayerName, func(sessionID string) {
			s.Join(sessionID)
		})
		if err != nil {
			log.Error().Err(err).Str("player", payload.PlayerName).Msg("joinGame failed")
			srv.emitErr(s, "join_failed", "Could not join game")
			return
		}
		log.Info().Str("sid", s.ID()).Str("sessionId", session.ID).Str("player", payload.PlayerName).Msg("joinGame")
	})

	io.OnEvent("/", "startGame", func(s socketio.Conn, payload struct {
		PromptID      string `json:"promptId"`
		GameSessionID string `json:"gameSessionId"`
	}) {
		if err := srv.manager.Start(context.Background(), payload.GameSessionID, payload.PromptID); err != nil {
			log.Error().Err(err).Str("sessionId", payload.GameSessionID).Msg("startGame failed")
			srv.emitErr(s, "start_failed", err.Error())
		}
	})

	io.OnEvent("/", "submitDrawing", func(s socketio.Conn, payload struct {
		PlayerName    string `json:"playerName"`
		Filename      string `json:"filename"`
		GameSessionID string `json:"gameSessionId"`
	}) game.SubmitResult {
		result := srv.manager.Submit(context.Background(), payload.GameSessionID, payload.PlayerName, payload.Filename)
		if result.Success {
			// private echo to the submitting connection only
			s.Emit("drawingReceived", map[string]any{"score": result.Score, "labels": result.Labels})
		}
		log.Info().Str("sid", s.ID()).Str("player", payload.PlayerName).Bool("success", result.Success).Msg("submitDrawing")
		return result
	})

	io.OnEvent("/", "endGame", func(s socketio.Conn, payload struct {
		GameSessionID string `json:"gameSessionId"`
	}) {
		if err := srv.manager.End(context.Background(), payload.GameSessionID); err != nil {
			log.Error().Err(err).Str("sessionId", payload.GameSessionID).Msg("endGame failed")
			srv.emitErr(s, "end_failed", err.Error())
		}
	})

	io.OnEvent("/", "syncGameSessions", func(s socketio.Conn) {
		summaries, err := srv.manager.Resync(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("syncGameSessions failed")
			srv.emitErr(s, "sync_failed", "Could not sync game sessions")
			return
		}
		srv.Broadcast("gameSessionsUpdated", map[string]any{"ongoingGames": summaries})
	})

	io.OnEvent("/", "getLeaderboardData", func(s socketio.Conn) {
		s.Emit("leaderboardUpdate", srv.manager.Leaderboard())
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) emitErr(s socketio.Conn, code, message string) {
	s.Emit("error", map[string]any{"code": code, "message": message})
}
