package server

import (
	"net/http"

	"VoxTA/core/tts"
	"VoxTA/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSink 把流式合成协议落到一条websocket连接上。
// 控制消息走文本帧，音频走二进制帧，连接由当前请求独占。
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) SendInfo(totalSentences int) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"type":            "info",
		"total_sentences": totalSentences,
	})
}

func (s *wsSink) SendChunk(audio []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (s *wsSink) SendSentenceComplete(index, total int) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"type":  "sentence_complete",
		"index": index,
		"total": total,
	})
}

func (s *wsSink) SendComplete(duration float64) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"duration": duration,
	})
}

func (s *wsSink) SendError(message string) error {
	return s.conn.WriteJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// StreamSynthesizeHandler 流式合成：客户端发一条请求消息，
// 服务端按句推送音频直到终止消息，然后关连接。
func (h *APIHandler) StreamSynthesizeHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	var req tts.SynthesizeRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Warn("流式请求解析失败", logger.ErrorField(err))
		return
	}

	sink := &wsSink{conn: conn}
	if err := h.tts.Stream(r.Context(), &req, sink); err != nil {
		logger.Warn("流式合成终止", logger.ErrorField(err))
		return
	}

	// 正常收尾
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
