package monitor

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sugawarayuuta/sonnet"
)

var upgrader = websocket.Upgrader{}

// Server streams captured packets to websocket clients. Each client gets its
// own bounded fan-out queue, so a slow websocket never backs up the capture
// consumer.
type Server struct {
	fanout *Fanout
	mux    *http.ServeMux
}

func NewServer(fanout *Fanout) *Server {
	s := &Server{fanout: fanout}

	mux := http.NewServeMux()
	mux.HandleFunc("/packets", s.packets)
	s.mux = mux

	return s
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	log.Info().Str("address", addr).Msg("Starting monitor server")
	return srv.ListenAndServe()
}

// streamedPacket is the JSON shape pushed to websocket clients. The payload
// is base64-encoded by the JSON encoder.
type streamedPacket struct {
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"`
	Length     int       `json:"length"`
	Payload    []byte    `json:"payload"`
}

func (s *Server) packets(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Err(err).Msg("upgrade")
		return
	}
	defer c.Close()

	queue, id := s.fanout.Attach()
	defer s.fanout.Detach(id)

	for {
		pkt := queue.Dequeue()

		message, err := sonnet.Marshal(streamedPacket{
			ReceivedAt: pkt.ReceivedAt,
			Source:     pkt.Source,
			Length:     len(pkt.Data),
			Payload:    pkt.Data,
		})
		if err != nil {
			log.Err(err).Msg("json marshal")
			break
		}

		if err := c.WriteMessage(websocket.BinaryMessage, message); err != nil {
			log.Info().Err(err).Msg("failed to write to websocket")
			break
		}
	}
}
