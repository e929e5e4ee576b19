package web

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mogaika/vrm_transform/config"
	"github.com/mogaika/vrm_transform/status"
	"github.com/mogaika/vrm_transform/webutils"
)

// MaxUploadSize bounds the avatar accepted by /api/process.
const MaxUploadSize = 256 << 20

type Server struct {
	cfg *config.Config
	log *zap.Logger
}

func NewServer(cfg *config.Config, log *zap.Logger) *Server {
	return &Server{cfg: cfg, log: log.Named("web")}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/process", s.HandlerProcess).Methods(http.MethodPost)
	r.HandleFunc("/api/steps", s.HandlerSteps).Methods(http.MethodGet)
	r.HandleFunc("/ws/status", status.ServeWs)

	h := handlers.RecoveryHandler(handlers.RecoveryLogger(zap.NewStdLog(s.log)))(r)
	return handlers.LoggingHandler(os.Stdout, h)
}

func StartServer(cfg *config.Config, log *zap.Logger) error {
	webutils.SetLogger(log)
	status.SetLogger(log)
	s := NewServer(cfg, log)

	s.log.Info("Starting server", zap.String("addr", cfg.Web.Addr))

	return http.ListenAndServe(cfg.Web.Addr, s.Handler())
}
