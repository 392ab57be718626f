package httptransport

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"spreadboard/internal/board"
	"spreadboard/internal/diff"
	"spreadboard/internal/ohlc"
	"spreadboard/internal/render"
	"spreadboard/internal/scrip"
	"spreadboard/pkg/dhan"
	"spreadboard/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const liveReload = `<script>
(function () {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function () { location.reload(); };
})();
</script>
`

func statusFor(err error) int {
	switch {
	case errors.Is(err, board.ErrBlockNotFound), errors.Is(err, scrip.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, scrip.ErrLegUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrInvalidConfig), errors.Is(err, scrip.ErrInvalidLeg), errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, board.ErrNoSymbols):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// session returns the caller's session, creating it.
func (s *Server) session(c *gin.Context) *board.Session {
	return s.sessions.Get(sessionID(c))
}

// existingSession never creates; an unknown session has no blocks.
func (s *Server) existingSession(c *gin.Context) (*board.Session, error) {
	sess, ok := s.sessions.Lookup(sessionID(c))
	if !ok {
		return nil, board.ErrBlockNotFound
	}
	return sess, nil
}

func (s *Server) blocks(c *gin.Context) []board.Block {
	sess, err := s.existingSession(c)
	if err != nil {
		return []board.Block{}
	}
	return sess.List()
}

func (s *Server) block(c *gin.Context) (board.Block, error) {
	sess, err := s.existingSession(c)
	if err != nil {
		return board.Block{}, err
	}
	return sess.Get(c.Param("id"))
}

func (s *Server) handleHealth(c *gin.Context) {
	status, code, archive := "ok", http.StatusOK, "ok"
	if !s.controller.ArchiveHealthy(c.Request.Context()) {
		status, code, archive = "degraded", http.StatusServiceUnavailable, "unreachable"
	}
	c.JSON(code, gin.H{
		"status":   status,
		"archive":  archive,
		"symbols":  len(s.controller.Symbols()),
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleDashboard(c *gin.Context) {
	var buf bytes.Buffer
	if err := render.Dashboard(&buf, s.blocks(c)); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", injectBeforeBodyEnd(buf.Bytes(), liveReload))
}

func injectBeforeBodyEnd(page []byte, snippet string) []byte {
	i := bytes.LastIndex(page, []byte("</body>"))
	if i < 0 {
		return append(page, snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	return append(out, page[i:]...)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Info("failed to upgrade websocket", zap.Error(err))
		return
	}
	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan Event, 64),
		session: sessionID(c),
	}
	if !s.hub.Register(client) {
		s.logger.Info("websocket hub not running, closing connection")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.controller.Symbols()})
}

func (s *Server) handleOptions(c *gin.Context) {
	intervals := make([]string, len(dhan.Intervals))
	for i, iv := range dhan.Intervals {
		intervals[i] = iv.Label
	}
	resp := gin.H{
		"intervals":   intervals,
		"legs":        ohlc.Legs,
		"pairs":       diff.Pairs,
		"trade_modes": diff.TradeModes,
	}
	if def, err := s.controller.DefaultConfig(); err == nil {
		resp["defaults"] = def
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListBlocks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blocks": s.blocks(c)})
}

// bindPatch reads an optional ConfigPatch body.
func bindPatch(c *gin.Context) (board.ConfigPatch, error) {
	var patch board.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		return patch, errors.Join(board.ErrInvalidConfig, err)
	}
	return patch, nil
}

func (s *Server) handleAddBlock(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.controller.AddBlock(s.session(c), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) handleGetBlock(c *gin.Context) {
	b, err := s.block(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleUpdateBlock(c *gin.Context) {
	patch, err := bindPatch(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, err := s.existingSession(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.controller.UpdateBlock(sess, c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleRemoveBlock(c *gin.Context) {
	sess, err := s.existingSession(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.controller.RemoveBlock(sess, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDone(c *gin.Context) {
	sess, err := s.existingSession(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.controller.Done(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleBlockChart(c *gin.Context) {
	b, err := s.block(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := render.Block(&buf, b); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	b, err := s.block(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b.Diagnostics())
}

// handleHistory serves archived bars; from and to are inclusive dates.
func (s *Server) handleHistory(c *gin.Context) {
	leg, err := ohlc.ParseLeg(c.DefaultQuery("leg", "Spot"))
	if err != nil {
		s.fail(c, errors.Join(storage.ErrInvalidKey, err))
		return
	}
	key := storage.SeriesKey{
		Symbol:   strings.TrimSpace(c.Query("symbol")),
		Leg:      leg,
		Interval: historyInterval(c.DefaultQuery("interval", dhan.DefaultInterval.APIValue)),
	}

	loc := s.controller.Location()
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if from, err = time.ParseInLocation(board.DateLayout, v, loc); err != nil {
			s.fail(c, errors.Join(storage.ErrInvalidKey, err))
			return
		}
	}
	if v := c.Query("to"); v != "" {
		day, err := time.ParseInLocation(board.DateLayout, v, loc)
		if err != nil {
			s.fail(c, errors.Join(storage.ErrInvalidKey, err))
			return
		}
		to = day.AddDate(0, 0, 1)
	}

	table, err := s.controller.History(c.Request.Context(), key, from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": key, "bars": table})
}

// historyInterval accepts a label ("5 min"), a broker value ("5") or "D".
func historyInterval(v string) string {
	if iv, err := dhan.ParseInterval(v); err == nil {
		return iv.APIValue
	}
	return strings.TrimSpace(v)
}
